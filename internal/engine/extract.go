package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

type categoryResponse struct {
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

// classifyCategory routes text to one category of the catalogue. An answer
// that does not normalize to a known category is an error, not a guess;
// callers recover by offering a manual pick.
func (e *Engine) classifyCategory(ctx context.Context, text string, catalogue model.Catalogue, routerPrompt, modelName string) (string, error) {
	userPrompt := expandTemplate(routerPrompt, map[string]string{
		"text":       text,
		"categories": catalogueText(catalogue),
	})
	raw, err := e.chat.ChatJSON(ctx, defaultRouterSystem, userPrompt, modelName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	var resp categoryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}
	if strings.TrimSpace(resp.Category) == "" {
		return "", fmt.Errorf("%w: model returned no category", common.ErrClassificationFailed)
	}

	canonical := catalogue.Resolve(resp.Category)
	if canonical == "" {
		return "", fmt.Errorf("%w: unknown category %q", common.ErrClassificationFailed, resp.Category)
	}
	return canonical, nil
}

// extractRow fills a row aligned to headers from the text. Response keys
// are matched against headers case-insensitively; unmatched headers default
// to empty, and a bare "дата" header defaults to today when left blank.
// Headers must already be in display form.
func (e *Engine) extractRow(ctx context.Context, text string, headers []string, todayStr, extractPrompt, modelName string) ([]string, error) {
	userPrompt := expandTemplate(extractPrompt, map[string]string{
		"text":    text,
		"headers": strings.Join(headers, ", "),
		"today":   todayStr,
	})
	raw, err := e.chat.ChatJSON(ctx, defaultExtractSystem, userPrompt, modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	byHeader := make(map[string]string, len(fields))
	lowered := make(map[string]string, len(headers))
	for _, h := range headers {
		lowered[strings.ToLower(strings.TrimSpace(h))] = h
	}
	for key, value := range fields {
		header, ok := lowered[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		byHeader[header] = decodeCell(value)
	}

	row := make([]string, len(headers))
	for idx, header := range headers {
		row[idx] = byHeader[header]
		if strings.ToLower(strings.TrimSpace(header)) == "дата" && strings.TrimSpace(row[idx]) == "" {
			row[idx] = todayStr
		}
	}
	return row, nil
}

// decodeCell coerces any JSON scalar the model produced into a cell string.
func decodeCell(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return ""
	}
	return strings.Trim(fmt.Sprint(v), "[]")
}

// applyTextFields enforces the two deterministic text columns: the raw
// column always holds the verbatim transcript, and the summary column is
// regenerated whenever the model's summary is empty or just echoes the
// raw text.
func (e *Engine) applyTextFields(headers, row []string, transcript string) []string {
	row = padRowCopy(headers, row)

	rawIdx := model.FindHeaderIndex(headers, e.lex.RawColumns)
	summaryIdx := model.FindHeaderIndex(headers, e.lex.SummaryColumns)

	if rawIdx >= 0 {
		row[rawIdx] = transcript
	}
	if summaryIdx < 0 {
		return row
	}

	summary := strings.TrimSpace(row[summaryIdx])
	rawValue := strings.TrimSpace(transcript)
	rawCell := ""
	if rawIdx >= 0 {
		rawCell = strings.TrimSpace(row[rawIdx])
	}
	if summary == "" ||
		model.NormalizeText(summary) == model.NormalizeText(rawValue) ||
		model.NormalizeText(summary) == model.NormalizeText(rawCell) {
		row[summaryIdx] = e.makeSummary(transcript)
	}
	return row
}

// summaryValue returns the row's summary cell in display form, or "".
func (e *Engine) summaryValue(headers, row []string) string {
	return model.ValueByHeader(headers, row, e.lex.SummaryColumns)
}
