// Package engine implements the intake pipeline: a raw transcript goes in,
// zero or more structured rows come out, with interactive recovery for
// missing mandatory fields, near-duplicate collisions and failed category
// routing. All conversation state lives in the session passed to every
// entry point, never in the engine itself.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
	srv "github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/session"
)

// Settings supplies the mutable runtime options the engine reads per
// request.
type Settings interface {
	ModelName() string
	Location() *time.Location
}

// Answerer serves the ask path over accumulated records.
type Answerer interface {
	Answer(ctx context.Context, question, modelName string) (string, error)
}

// Config tunes the engine. Zero values take defaults.
type Config struct {
	// AuditSheet receives one (date, category, transcript) append per
	// committed row, plus best-effort writes on fatal paths.
	AuditSheet string
	// NoteSheet is where structured long-utterance notes land.
	NoteSheet string
	// ReservedSheets are excluded from delete scans.
	ReservedSheets map[string]bool
	// DeleteLimit caps the candidate list per delete query.
	DeleteLimit int
	// LLMTimeout bounds each classification and extraction call.
	LLMTimeout time.Duration
	// LongTranscriptChars switches transcripts at or above this length
	// into note-structuring mode.
	LongTranscriptChars int
}

func (c *Config) applyDefaults() {
	if c.AuditSheet == "" {
		c.AuditSheet = "Inbox"
	}
	if c.NoteSheet == "" {
		c.NoteSheet = "Прочее"
	}
	if c.ReservedSheets == nil {
		c.ReservedSheets = map[string]bool{
			"settings": true, "prompts": true, "inbox": true, "botsettings": true,
		}
	}
	if c.DeleteLimit <= 0 {
		c.DeleteLimit = deleteCandidateLimit
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 60 * time.Second
	}
	if c.LongTranscriptChars <= 0 {
		c.LongTranscriptChars = 2500
	}
}

// Engine orchestrates intake for every conversation. It is safe for
// concurrent use; per-conversation state lives in the Session arguments.
type Engine struct {
	store    srv.TabularStore
	chat     srv.ChatModel
	answerer Answerer
	settings Settings
	lex      *Lexicon
	cfg      Config

	clauseRe      *regexp.Regexp
	conjunctionRe *regexp.Regexp

	clock func() time.Time
}

// New builds an engine. A nil lexicon takes the default Russian/English
// table.
func New(store srv.TabularStore, chat srv.ChatModel, answerer Answerer, settings Settings, lex *Lexicon, cfg Config) *Engine {
	if lex == nil {
		lex = DefaultLexicon()
	}
	cfg.applyDefaults()
	clauseRe, conjunctionRe := compileClauseMarkers(lex)
	return &Engine{
		store:         store,
		chat:          chat,
		answerer:      answerer,
		settings:      settings,
		lex:           lex,
		cfg:           cfg,
		clauseRe:      clauseRe,
		conjunctionRe: conjunctionRe,
		clock:         time.Now,
	}
}

func (e *Engine) now() time.Time {
	return e.clock().In(e.settings.Location())
}

// today returns midnight of the current day in the configured timezone.
func (e *Engine) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (e *Engine) isReservedSheet(name string) bool {
	return e.cfg.ReservedSheets[strings.ToLower(strings.TrimSpace(name))]
}

// HandleUtterance runs the full pipeline for a fresh transcript. Any
// previously suspended context in the session is superseded.
func (e *Engine) HandleUtterance(ctx context.Context, sess *session.Session, transcript string) Outcome {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return failed("Пустая расшифровка. Попробуйте еще раз.")
	}
	sess.Reset()

	if len([]rune(transcript)) >= e.cfg.LongTranscriptChars {
		return e.HandleLongUtterance(ctx, sess, transcript)
	}

	modelName := e.settings.ModelName()
	todayStr := e.today().Format(DateFormat)

	intent := e.detectIntent(ctx, transcript, modelName)
	common.LogInfo("intent detected", common.Fields{
		"action":  string(intent.Action),
		"chars":   len(transcript),
		"session": sess.ID,
	})

	switch intent.Action {
	case ActionAsk:
		answer, err := e.answerer.Answer(ctx, intent.Query, modelName)
		if err != nil {
			common.LogError(err, "question answering failed", nil)
			e.safeAudit(ctx, todayStr, "Unknown", transcript)
			return failed("Не удалось найти ответ. Попробуйте еще раз.")
		}
		return answered(answer)

	case ActionDelete:
		candidates, err := e.findDeleteCandidates(ctx, intent.Query, e.cfg.DeleteLimit)
		if err != nil {
			common.LogError(err, "delete candidate search failed", nil)
			return failed("Не удалось выполнить поиск записей для удаления.")
		}
		if len(candidates) > 0 {
			sess.State = session.StateWaitingDeletePick
			sess.Candidates = candidates
		}
		return Outcome{Kind: OutcomeCandidateList, Candidates: candidates}
	}

	return e.handleAdd(ctx, sess, transcript, todayStr, modelName)
}

func (e *Engine) handleAdd(ctx context.Context, sess *session.Session, transcript, todayStr, modelName string) Outcome {
	catalogue, err := e.store.Categories(ctx)
	if err != nil || len(catalogue) == 0 {
		if err != nil {
			common.LogError(err, "failed to load categories", nil)
		}
		e.safeAudit(ctx, todayStr, "Unknown", transcript)
		return failed("Категории не найдены. Проверьте лист Settings.")
	}

	routerPrompt, extractPrompt := e.loadPrompts(ctx)

	items := e.splitItems(ctx, transcript, catalogue, modelName)
	common.LogInfo("transcript split", common.Fields{
		"items":   len(items),
		"session": sess.ID,
	})

	if len(items) == 1 {
		return e.handleSingle(ctx, sess, items[0], transcript, todayStr, catalogue, routerPrompt, extractPrompt, modelName)
	}
	return e.handleMulti(ctx, sess, items, transcript, todayStr, catalogue, extractPrompt, modelName)
}

func (e *Engine) handleSingle(ctx context.Context, sess *session.Session, item model.Item, transcript, todayStr string, catalogue model.Catalogue, routerPrompt, extractPrompt, modelName string) Outcome {
	category := item.Category
	if category == "" {
		var err error
		category, err = e.classifyWithTimeout(ctx, transcript, catalogue, routerPrompt, modelName)
		if err != nil {
			common.LogError(err, "category classification failed, prompting manual pick", nil)
			return e.promptCategoryPick(sess, catalogue.Names(), transcript, todayStr)
		}
	}

	intake, err := e.prepareIntake(ctx, category, transcript, todayStr, extractPrompt, modelName)
	if err != nil {
		return e.fatalIntake(ctx, sess, err, todayStr, category, transcript)
	}
	sess.Active = intake
	return e.advance(ctx, sess)
}

func (e *Engine) handleMulti(ctx context.Context, sess *session.Session, items []model.Item, transcript, todayStr string, catalogue model.Catalogue, extractPrompt, modelName string) Outcome {
	var queue []session.Intake
	for _, item := range items {
		text := item.Text
		if item.Source != model.SourceRule {
			text = e.expandItemText(text, transcript, item.Category)
		}

		category := item.Category
		if category == "" {
			var err error
			category, err = e.classifyCategory(ctx, text, catalogue, defaultRouterUser, modelName)
			if err != nil {
				common.LogError(err, "failed to classify item category", nil)
				sess.Results = append(sess.Results, "⚠️ Не удалось определить категорию для одного пункта.")
				continue
			}
		}

		intake, err := e.prepareIntake(ctx, category, text, todayStr, extractPrompt, modelName)
		if err != nil {
			common.LogError(err, "failed to prepare item", common.Fields{"category": category})
			e.safeAudit(ctx, todayStr, category, text)
			sess.Results = append(sess.Results, "⚠️ Ошибка при обработке одного пункта.")
			continue
		}
		queue = append(queue, *intake)
	}

	if len(queue) == 0 {
		if len(sess.Results) > 0 {
			lines := sess.Results
			sess.Reset()
			return multiCommitted(lines)
		}
		e.safeAudit(ctx, todayStr, "Unknown", transcript)
		return failed("Не удалось обработать сообщение. Попробуйте еще раз.")
	}

	sess.Active = &queue[0]
	if len(queue) > 1 {
		sess.Queue = append(sess.Queue, queue[1:]...)
	}
	return e.advance(ctx, sess)
}

// prepareIntake reads the category's schema and extracts a post-processed
// row for the text.
func (e *Engine) prepareIntake(ctx context.Context, category, text, todayStr, extractPrompt, modelName string) (*session.Intake, error) {
	headers, err := e.store.Headers(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("reading headers for %s: %w", category, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNoHeaders, category)
	}

	extractCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()
	row, err := e.extractRow(extractCtx, text, model.CleanHeaders(headers), todayStr, extractPrompt, modelName)
	if err != nil {
		return nil, err
	}

	today, _ := parseDate(todayStr)
	row = e.applyTextFields(headers, row, text)
	row = e.applyDateFields(headers, row, text, today)

	return &session.Intake{
		Category:   category,
		Transcript: text,
		Today:      todayStr,
		Headers:    headers,
		Row:        row,
	}, nil
}

func (e *Engine) classifyWithTimeout(ctx context.Context, text string, catalogue model.Catalogue, routerPrompt, modelName string) (string, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()
	return e.classifyCategory(classifyCtx, text, catalogue, routerPrompt, modelName)
}

func (e *Engine) promptCategoryPick(sess *session.Session, categories []string, transcript, todayStr string) Outcome {
	sess.State = session.StateWaitingCategoryPick
	sess.Categories = categories
	sess.Active = &session.Intake{Transcript: transcript, Today: todayStr}

	choices := make([]Choice, 0, len(categories)+1)
	for idx, name := range categories {
		choices = append(choices, Choice{Label: name, Data: ChoiceCategoryPrefix + strconv.Itoa(idx)})
	}
	choices = append(choices, Choice{Label: "Отмена", Data: ChoiceCategoryCancel})
	return needsInput("Не смог определить категорию.\nВыберите нужную:", choices...)
}

// advance is the state pump: it drives the active intake and the queued
// ones behind it until everything commits or a suspension point is hit.
// skipRequired bypasses the mandatory-field check for the active intake
// only, after an explicit user skip.
func (e *Engine) advance(ctx context.Context, sess *session.Session) Outcome {
	return e.resume(ctx, sess, false)
}

func (e *Engine) resume(ctx context.Context, sess *session.Session, skipRequired bool) Outcome {
	for sess.Active != nil {
		intake := sess.Active

		if !skipRequired {
			missing := model.MissingRequired(intake.Headers, intake.Row)
			if len(missing) > 0 {
				return e.suspendRequired(sess, intake, missing)
			}
		}
		skipRequired = false

		if intake.DuplicatePreview == "" {
			if preview := e.findDuplicate(ctx, intake.Category, intake.Headers, intake.Row); preview != "" {
				intake.DuplicatePreview = preview
				sess.State = session.StateWaitingDuplicateConfirm
				return needsConfirmation(
					"Похоже, это дубликат.\n\n"+preview+"\n\nДобавить новую запись?",
					duplicateChoices()...,
				)
			}
		}

		if out, fatal := e.commitActive(ctx, sess); fatal {
			return out
		}
	}
	return e.consolidate(sess)
}

func (e *Engine) suspendRequired(sess *session.Session, intake *session.Intake, missing []model.Field) Outcome {
	indices := make([]int, len(missing))
	for i, f := range missing {
		indices[i] = f.Index
	}
	intake.MissingIndices = indices
	sess.State = session.StateWaitingRequired

	if len(missing) == 1 && e.isPriorityField(missing[0].Name) {
		return needsInput("Нужно выбрать приоритет задачи:", priorityChoices()...)
	}
	return needsInput(requiredPrompt(missing), requiredChoices()...)
}

// commitActive writes the active intake's row plus its audit entry, records
// a result line and moves the queue forward. The returned outcome is only
// meaningful when fatal is true: a primary write failure with nothing else
// accumulated fails the whole utterance.
func (e *Engine) commitActive(ctx context.Context, sess *session.Session) (Outcome, bool) {
	intake := sess.Active
	today, ok := parseDate(intake.Today)
	if !ok {
		today = e.today()
	}

	row := e.applyTextFields(intake.Headers, intake.Row, intake.Transcript)
	row = e.applyDateFields(intake.Headers, row, intake.Transcript, today)

	if err := e.store.AppendRow(ctx, intake.Category, row); err != nil {
		common.LogError(err, "failed to append row", common.Fields{"category": intake.Category})
		e.safeAudit(ctx, intake.Today, intake.Category, intake.Transcript)
		if len(sess.Results) == 0 && len(sess.Queue) == 0 {
			sess.Reset()
			return failed(common.UserMessage(err, "Не удалось сохранить запись. Попробуйте еще раз.")), true
		}
		sess.Results = append(sess.Results, "⚠️ Не удалось сохранить: "+intake.Category)
		sess.Active = sess.PopQueue()
		return Outcome{}, false
	}

	if err := e.store.AppendRow(ctx, e.cfg.AuditSheet, []string{intake.Today, intake.Category, intake.Transcript}); err != nil {
		common.LogError(err, "failed to append audit entry", nil)
	}

	summary := e.summaryValue(intake.Headers, row)
	if summary == "" {
		summary = model.Shorten(intake.Transcript, 300)
	}
	sess.Results = append(sess.Results, "✅ "+intake.Category+": "+summary)
	sess.Active = sess.PopQueue()
	return Outcome{}, false
}

// consolidate turns the accumulated result lines into the final outcome
// and resets the session.
func (e *Engine) consolidate(sess *session.Session) Outcome {
	lines := sess.Results
	sess.Reset()
	switch len(lines) {
	case 0:
		return cancelled()
	case 1:
		category, summary, found := strings.Cut(strings.TrimPrefix(lines[0], "✅ "), ": ")
		if found {
			return committed(category, summary)
		}
		return multiCommitted(lines)
	default:
		return multiCommitted(lines)
	}
}

// HandleReply processes a free-text message while the session is suspended.
func (e *Engine) HandleReply(ctx context.Context, sess *session.Session, text string) Outcome {
	text = strings.TrimSpace(text)

	if sess.State == session.StateIdle {
		return e.HandleUtterance(ctx, sess, text)
	}
	if e.isCancelWord(text) {
		sess.Reset()
		return cancelled()
	}

	if sess.State != session.StateWaitingDeletePick && sess.State != session.StateWaitingNoteConfirm && sess.Active == nil {
		sess.Reset()
		return failed("Не удалось восстановить контекст. Повторите запись.")
	}

	switch sess.State {
	case session.StateWaitingRequired:
		return e.replyRequired(ctx, sess, text)
	case session.StateWaitingDuplicateConfirm:
		return needsConfirmation(
			"Похоже, это дубликат.\n\n"+sess.Active.DuplicatePreview+"\n\nДобавить новую запись?",
			duplicateChoices()...,
		)
	case session.StateWaitingCategoryPick:
		return e.promptCategoryPick(sess, sess.Categories, sess.Active.Transcript, sess.Active.Today)
	case session.StateWaitingDeletePick:
		return Outcome{Kind: OutcomeCandidateList, Candidates: sess.Candidates}
	case session.StateWaitingNoteConfirm:
		return e.notePrompt(sess)
	}
	sess.Reset()
	return failed("Не удалось восстановить контекст. Повторите запись.")
}

func (e *Engine) replyRequired(ctx context.Context, sess *session.Session, text string) Outcome {
	intake := sess.Active
	if intake == nil {
		sess.Reset()
		return failed("Не удалось восстановить контекст. Повторите запись.")
	}

	if e.isSkipWord(text) {
		return e.skipRequired(ctx, sess)
	}

	missing := model.MissingRequired(intake.Headers, intake.Row)
	updates := parseKeyValues(text, missing)
	intake.Row = padRowCopy(intake.Headers, intake.Row)
	if len(updates) == 0 && len(missing) == 1 {
		intake.Row[missing[0].Index] = text
	} else {
		for idx, value := range updates {
			if idx < len(intake.Row) {
				intake.Row[idx] = value
			}
		}
	}
	return e.advance(ctx, sess)
}

// skipRequired blanks the still-missing mandatory cells of the active
// intake and proceeds without them.
func (e *Engine) skipRequired(ctx context.Context, sess *session.Session) Outcome {
	intake := sess.Active
	if intake == nil {
		sess.Reset()
		return failed("Не удалось восстановить контекст. Повторите запись.")
	}
	intake.Row = padRowCopy(intake.Headers, intake.Row)
	for _, idx := range intake.MissingIndices {
		if idx >= 0 && idx < len(intake.Row) {
			intake.Row[idx] = ""
		}
	}
	return e.resume(ctx, sess, true)
}

// HandleChoice processes a button press. data is one of the Choice
// constants, possibly carrying an index suffix.
func (e *Engine) HandleChoice(ctx context.Context, sess *session.Session, data string) Outcome {
	switch data {
	case ChoiceCancel, ChoiceCategoryCancel, ChoiceDeleteCancel, ChoiceNoteCancel:
		sess.Reset()
		return cancelled()
	case ChoiceSkip:
		if sess.State != session.StateWaitingRequired {
			return failed("Неизвестное действие.")
		}
		return e.skipRequired(ctx, sess)
	case ChoicePriorityLow, ChoicePriorityMedium, ChoicePriorityHigh:
		return e.choosePriority(ctx, sess, data)
	case ChoiceDuplicateAdd:
		return e.confirmDuplicateAdd(ctx, sess)
	case ChoiceDuplicateSkip:
		return e.confirmDuplicateSkip(ctx, sess)
	case ChoiceNoteSave:
		return e.saveNote(ctx, sess)
	}

	if idx, ok := choiceIndex(data, ChoiceCategoryPrefix); ok {
		return e.chooseCategory(ctx, sess, idx)
	}
	if idx, ok := choiceIndex(data, ChoiceDeletePrefix); ok {
		return e.chooseDelete(ctx, sess, idx)
	}
	return failed("Неизвестное действие.")
}

func choiceIndex(data, prefix string) (int, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (e *Engine) choosePriority(ctx context.Context, sess *session.Session, data string) Outcome {
	if sess.State != session.StateWaitingRequired || sess.Active == nil {
		return failed("Неизвестное действие.")
	}
	code := data[strings.LastIndex(data, ":")+1:]
	value, ok := e.lex.PriorityValues[code]
	if !ok {
		return failed("Неизвестный приоритет.")
	}

	intake := sess.Active
	intake.Row = padRowCopy(intake.Headers, intake.Row)
	idx := -1
	for i, header := range intake.Headers {
		if e.isPriorityField(model.CleanHeader(header)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		sess.Reset()
		return failed("Поле приоритета не найдено.")
	}
	intake.Row[idx] = value
	return e.advance(ctx, sess)
}

func (e *Engine) confirmDuplicateAdd(ctx context.Context, sess *session.Session) Outcome {
	if sess.State != session.StateWaitingDuplicateConfirm || sess.Active == nil {
		return failed("Неизвестное действие.")
	}
	// DuplicatePreview stays set, so resume will not re-suspend.
	return e.advance(ctx, sess)
}

func (e *Engine) confirmDuplicateSkip(ctx context.Context, sess *session.Session) Outcome {
	if sess.State != session.StateWaitingDuplicateConfirm || sess.Active == nil {
		return failed("Неизвестное действие.")
	}
	if len(sess.Results) == 0 && len(sess.Queue) == 0 {
		sess.Reset()
		return cancelled()
	}
	sess.Results = append(sess.Results, "⚠️ Дубликат пропущен: "+sess.Active.Category)
	sess.Active = sess.PopQueue()
	return e.advance(ctx, sess)
}

func (e *Engine) chooseCategory(ctx context.Context, sess *session.Session, idx int) Outcome {
	if sess.State != session.StateWaitingCategoryPick || sess.Active == nil {
		return failed("Неизвестное действие.")
	}
	if idx < 0 || idx >= len(sess.Categories) {
		return failed("Неверный выбор.")
	}
	category := sess.Categories[idx]
	transcript := sess.Active.Transcript
	todayStr := sess.Active.Today

	_, extractPrompt := e.loadPrompts(ctx)
	intake, err := e.prepareIntake(ctx, category, transcript, todayStr, extractPrompt, e.settings.ModelName())
	if err != nil {
		return e.fatalIntake(ctx, sess, err, todayStr, category, transcript)
	}
	sess.Categories = nil
	sess.Active = intake
	return e.advance(ctx, sess)
}

func (e *Engine) chooseDelete(ctx context.Context, sess *session.Session, idx int) Outcome {
	if sess.State != session.StateWaitingDeletePick {
		return failed("Неизвестное действие.")
	}
	if idx < 0 || idx >= len(sess.Candidates) {
		return failed("Неверный выбор.")
	}
	candidate := sess.Candidates[idx]
	sess.Reset()

	auditDeleted, err := e.deleteCandidate(ctx, candidate)
	if err != nil {
		common.LogError(err, "failed to delete candidate", common.Fields{"sheet": candidate.Sheet})
		return failed("Не удалось удалить запись. Попробуйте еще раз.")
	}
	lines := []string{"Удалил запись из «" + candidate.Sheet + "»."}
	if auditDeleted {
		lines = append(lines, "Заодно убрал её из Inbox.")
	}
	return multiCommitted(lines)
}

// fatalIntake reports an unrecoverable per-utterance failure, landing the
// raw transcript in the audit log first so nothing is silently lost.
func (e *Engine) fatalIntake(ctx context.Context, sess *session.Session, err error, todayStr, category, transcript string) Outcome {
	common.LogError(err, "intake failed", common.Fields{"category": category})
	if category == "" {
		category = "Unknown"
	}
	e.safeAudit(ctx, todayStr, category, transcript)
	sess.Reset()

	switch {
	case errors.Is(err, common.ErrWorksheetNotFound), errors.Is(err, common.ErrNoHeaders):
		return failed("Не найден лист в таблице. Проверьте название категории.")
	case errors.Is(err, context.DeadlineExceeded):
		return failed("Превышено время ожидания ответа от модели. Попробуйте еще раз.")
	default:
		return failed(common.UserMessage(err, "Ошибка обработки сообщения. Попробуйте еще раз."))
	}
}

// safeAudit writes the raw transcript to the audit sheet, logging failures
// instead of propagating them.
func (e *Engine) safeAudit(ctx context.Context, todayStr, category, transcript string) {
	if transcript == "" {
		return
	}
	if err := e.store.AppendRow(ctx, e.cfg.AuditSheet, []string{todayStr, category, transcript}); err != nil {
		common.LogError(err, "failed to write audit entry", nil)
	}
}

// loadPrompts returns the router and extract prompt templates, preferring
// overrides from the Prompts sheet over compiled-in defaults.
func (e *Engine) loadPrompts(ctx context.Context) (routerPrompt, extractPrompt string) {
	routerPrompt, extractPrompt = defaultRouterUser, defaultExtractUser
	prompts, err := e.store.Prompts(ctx)
	if err != nil {
		common.LogDebug("prompt overrides unavailable", common.Fields{"error": err.Error()})
		return routerPrompt, extractPrompt
	}
	if p := strings.TrimSpace(prompts[RouterPromptKey]); p != "" {
		routerPrompt = p
	}
	if p := strings.TrimSpace(prompts[ExtractPromptKey]); p != "" {
		extractPrompt = p
	}
	return routerPrompt, extractPrompt
}
