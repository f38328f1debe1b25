package telegram

import (
	"fmt"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/engine"
)

// RenderOutcome turns an engine outcome into a message text and an
// optional inline keyboard. An empty text means nothing to send.
func RenderOutcome(out engine.Outcome) (string, *InlineKeyboard) {
	switch out.Kind {
	case engine.OutcomeCommitted:
		if len(out.Lines) > 0 {
			return strings.Join(out.Lines, "\n"), nil
		}
		return fmt.Sprintf("✅ %s: %s", out.Category, out.Summary), nil

	case engine.OutcomeNeedsInput:
		return out.Prompt, keyboardFromChoices(out.Choices)

	case engine.OutcomeNeedsConfirmation:
		return out.Preview, keyboardFromChoices(out.Choices)

	case engine.OutcomeAnswer:
		return out.Answer, nil

	case engine.OutcomeCandidateList:
		return renderCandidates(out)

	case engine.OutcomeCancelled:
		return "Отменено.", nil

	case engine.OutcomeFailed:
		if out.Reason != "" {
			return out.Reason, nil
		}
		return "Не получилось обработать сообщение.", nil
	}
	return "", nil
}

// keyboardFromChoices lays buttons out up to three per row.
func keyboardFromChoices(choices []engine.Choice) *InlineKeyboard {
	if len(choices) == 0 {
		return nil
	}
	kb := &InlineKeyboard{}
	var row []Button
	for _, c := range choices {
		row = append(row, Button{Text: c.Label, Data: c.Data})
		if len(row) == 3 {
			kb.Rows = append(kb.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	return kb
}

func renderCandidates(out engine.Outcome) (string, *InlineKeyboard) {
	if len(out.Candidates) == 0 {
		return "Не нашел записей, подходящих под запрос на удаление.", nil
	}
	var sb strings.Builder
	sb.WriteString("Что удалить?\n")
	kb := &InlineKeyboard{}
	var row []Button
	for i, cand := range out.Candidates {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, cand.Preview)
		row = append(row, Button{
			Text: fmt.Sprintf("%d", i+1),
			Data: fmt.Sprintf("%s%d", engine.ChoiceDeletePrefix, i),
		})
		if len(row) == 4 {
			kb.Rows = append(kb.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	kb.Rows = append(kb.Rows, []Button{{Text: "Отмена", Data: engine.ChoiceDeleteCancel}})
	return sb.String(), kb
}
