package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/session"
)

// stringList tolerates the model returning either a list or a bare string
// for a block.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		var out []string
		for _, item := range list {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*l = nil
		return nil
	}
	if s = strings.TrimSpace(s); s != "" {
		*l = stringList{s}
	}
	return nil
}

type structuredNote struct {
	Summary  string     `json:"summary"`
	Ideas    stringList `json:"ideas"`
	Tasks    stringList `json:"tasks"`
	Expenses stringList `json:"expenses"`
	Other    stringList `json:"other"`
}

// HandleLongUtterance structures a long transcript into summary, ideas,
// tasks and expenses blocks and offers it as a single note instead of
// running the intake pipeline. The transport routes long voice notes here
// directly; HandleUtterance switches on transcript length.
func (e *Engine) HandleLongUtterance(ctx context.Context, sess *session.Session, transcript string) Outcome {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return failed("Пустая расшифровка. Попробуйте еще раз.")
	}
	sess.Reset()

	note := e.structureNote(ctx, transcript)
	sess.State = session.StateWaitingNoteConfirm
	sess.Note = buildNoteText(note, transcript)
	sess.NoteDate = e.today().Format(DateFormat)
	return e.notePrompt(sess)
}

func (e *Engine) structureNote(ctx context.Context, transcript string) structuredNote {
	userPrompt := expandTemplate(defaultThinkingUser, map[string]string{"text": transcript})
	raw, err := e.chat.ChatJSON(ctx, defaultThinkingSystem, userPrompt, e.settings.ModelName())
	if err == nil {
		var note structuredNote
		if err := json.Unmarshal(raw, &note); err == nil {
			return note
		}
	} else {
		common.LogError(err, "failed to structure long note", nil)
	}
	return structuredNote{
		Summary: e.makeSummary(transcript),
		Other:   stringList{transcript},
	}
}

func formatNoteBlocks(note structuredNote) string {
	var parts []string
	if summary := strings.TrimSpace(note.Summary); summary != "" {
		parts = append(parts, "Коротко: "+summary)
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Идеи", note.Ideas},
		{"Потенциальные задачи", note.Tasks},
		{"Траты", note.Expenses},
		{"Прочее", note.Other},
	}
	for _, section := range sections {
		if len(section.items) == 0 {
			continue
		}
		parts = append(parts, "\n"+section.title)
		for _, item := range section.items {
			parts = append(parts, "• "+item)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func buildNoteText(note structuredNote, transcript string) string {
	blocks := formatNoteBlocks(note)
	if blocks == "" {
		return strings.TrimSpace(transcript)
	}
	return blocks + "\n\nСырой текст:\n" + strings.TrimSpace(transcript)
}

func (e *Engine) notePrompt(sess *session.Session) Outcome {
	return needsConfirmation(
		sess.Note+"\n\nСохранить результат в «"+e.cfg.NoteSheet+"»?",
		Choice{Label: "Сохранить", Data: ChoiceNoteSave},
		Choice{Label: "Не сохранять", Data: ChoiceNoteCancel},
	)
}

// saveNote appends the structured note to the note sheet, falling back to
// the audit sheet when the note sheet does not exist.
func (e *Engine) saveNote(ctx context.Context, sess *session.Session) Outcome {
	if sess.State != session.StateWaitingNoteConfirm || sess.Note == "" {
		return failed("Неизвестное действие.")
	}
	row := []string{sess.NoteDate, "Thinking", sess.Note}
	sheet := e.cfg.NoteSheet
	if err := e.store.AppendRow(ctx, sheet, row); err != nil {
		if !errors.Is(err, common.ErrWorksheetNotFound) {
			common.LogError(err, "failed to save note", nil)
			return failed("Не удалось сохранить заметку. Попробуйте еще раз.")
		}
		sheet = e.cfg.AuditSheet
		if err := e.store.AppendRow(ctx, sheet, row); err != nil {
			common.LogError(err, "failed to save note to audit sheet", nil)
			return failed("Не удалось сохранить заметку. Попробуйте еще раз.")
		}
	}
	sess.Reset()
	return committed(sheet, "Заметка сохранена.")
}
