package engine

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// compileClauseMarkers builds the splitting regexps for a lexicon once,
// at engine construction. Word boundaries are spelled out as explicit
// delimiter classes because \b is ASCII-only and never fires around
// Cyrillic markers.
func compileClauseMarkers(lex *Lexicon) (clause, conjunction *regexp.Regexp) {
	quoted := make([]string, len(lex.ClauseMarkers))
	for i, m := range lex.ClauseMarkers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	clause = regexp.MustCompile(`(?i)(?:^|[\s,.])(?:` + strings.Join(quoted, "|") + `)(?:$|[\s,.])`)
	conjunction = regexp.MustCompile(`(?i)\s+` + regexp.QuoteMeta(strings.TrimSpace(lex.Conjunction)) + `\s+`)
	return clause, conjunction
}

type multiItemsResponse struct {
	Items []struct {
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"items"`
}

// splitItems breaks a transcript into independent items, one per record to
// be committed. The rule tier runs first and wins whenever the transcript
// carries an explicit category signal; otherwise the model splits and a
// keyword backstop re-adds any family it missed. Always returns at least
// one item.
func (e *Engine) splitItems(ctx context.Context, transcript string, catalogue model.Catalogue, modelName string) []model.Item {
	ruleItems := e.ruleBasedItems(transcript, catalogue.Names())
	if len(e.explicitSignals(transcript)) >= 1 && len(ruleItems) > 0 {
		return ruleItems
	}

	userPrompt := expandTemplate(defaultMultiUser, map[string]string{
		"text":       transcript,
		"categories": catalogueText(catalogue),
	})
	raw, err := e.chat.ChatJSON(ctx, defaultMultiSystem, userPrompt, modelName)
	if err != nil {
		common.LogDebug("multi-item split failed, degrading to single item", common.Fields{"error": err.Error()})
		return []model.Item{{Text: transcript, Source: model.SourceLLM}}
	}

	var resp multiItemsResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Items) == 0 {
		return []model.Item{{Text: transcript, Source: model.SourceLLM}}
	}

	items := make([]model.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			text = transcript
		}
		items = append(items, model.Item{
			Category: catalogue.Resolve(it.Category),
			Text:     text,
			Source:   model.SourceLLM,
		})
	}
	return e.backstopItems(transcript, catalogue.Names(), items)
}

// ruleBasedItems is the deterministic tier: sentences, then clauses at
// discourse connectors, then a conjunction split when a clause mixes two
// families. Clauses land in the best-scoring family's category; task
// clauses with an embedded list become one item per list element.
func (e *Engine) ruleBasedItems(transcript string, categories []string) []model.Item {
	resolved := map[FamilyKind]string{}
	any := false
	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		if name := f.CategoryFor(categories); name != "" {
			resolved[f.Kind] = name
			any = true
		}
	}
	if !any {
		return nil
	}

	var items []model.Item
	for _, sentence := range splitSentences(transcript) {
		for _, clause := range e.splitClauses(sentence) {
			for _, part := range e.splitByConjunction(clause) {
				kind, category := e.classifyClause(part, resolved)
				if category == "" {
					continue
				}
				if kind == FamilyTask {
					for _, sub := range e.splitTaskList(part) {
						items = append(items, model.Item{Category: category, Text: sub, Source: model.SourceRule})
					}
				} else {
					items = append(items, model.Item{Category: category, Text: strings.TrimSpace(part), Source: model.SourceRule})
				}
			}
		}
	}
	return items
}

func (e *Engine) splitClauses(sentence string) []string {
	var out []string
	for _, part := range e.clauseRe.Split(sentence, -1) {
		if part = strings.Trim(part, " ,.-"); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitByConjunction only splits a clause that shows two or more distinct
// family signals at once; single-family clauses stay whole.
func (e *Engine) splitByConjunction(clause string) []string {
	if len(e.explicitSignals(clause)) < 2 {
		return []string{clause}
	}
	var out []string
	for _, part := range e.conjunctionRe.Split(clause, -1) {
		if part = strings.Trim(part, " ,.-"); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *Engine) explicitSignals(text string) map[FamilyKind]bool {
	lowered := strings.ToLower(text)
	signals := map[FamilyKind]bool{}
	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		if containsAny(lowered, f.Signals) {
			signals[f.Kind] = true
		}
	}
	return signals
}

func (e *Engine) classifyClause(clause string, resolved map[FamilyKind]string) (FamilyKind, string) {
	lowered := strings.ToLower(clause)
	bestScore := 0
	var bestKind FamilyKind
	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		if _, ok := resolved[f.Kind]; !ok {
			continue
		}
		if score := keywordScore(lowered, f.Score); score > bestScore {
			bestScore = score
			bestKind = f.Kind
		}
	}
	if bestScore <= 0 {
		return "", ""
	}
	return bestKind, resolved[bestKind]
}

// splitTaskList splits "сделать X и Y и Z" task clauses into one item per
// element; a leading "something:" intro is dropped first.
func (e *Engine) splitTaskList(clause string) []string {
	if _, rest, found := strings.Cut(clause, ":"); found {
		clause = strings.TrimSpace(rest)
	}
	var parts []string
	for _, part := range strings.Split(clause, e.lex.Conjunction) {
		if part = strings.Trim(part, " ,.-"); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) <= 1 {
		return []string{strings.TrimSpace(clause)}
	}
	return parts
}

// backstopItems re-scans the raw transcript for family keywords and appends
// an item for any family textually present but missing from the model's
// split. The model under-splits more often than it over-splits.
func (e *Engine) backstopItems(transcript string, categories []string, items []model.Item) []model.Item {
	lowered := strings.ToLower(transcript)
	result := items
	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		category := f.CategoryFor(categories)
		if category == "" || !containsAny(lowered, f.Backstop) {
			continue
		}
		present := false
		for _, it := range result {
			if it.Category == category {
				present = true
				break
			}
		}
		if present {
			continue
		}
		result = append(result, model.Item{
			Category: category,
			Text:     extractSentence(transcript, f.Backstop),
			Source:   model.SourceHeuristic,
		})
	}
	return result
}

// expandItemText replaces a short item fragment with the full source
// sentence carrying the same family keywords, so extraction sees enough
// context. The longer text wins.
func (e *Engine) expandItemText(itemText, transcript, category string) string {
	itemText = strings.TrimSpace(itemText)
	if itemText == "" {
		itemText = strings.TrimSpace(transcript)
	}

	keywords := e.lex.DefaultExpand
	loweredCategory := strings.ToLower(category)
	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		if containsAny(loweredCategory, f.NameHints) {
			keywords = f.Expand
			break
		}
	}

	expanded := extractSentence(transcript, keywords)
	if len(strings.Fields(expanded)) > len(strings.Fields(itemText)) {
		return expanded
	}
	return itemText
}
