package engine

import (
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// isCancelWord and isSkipWord recognize the plain-text equivalents of the
// cancel and skip buttons.
func (e *Engine) isCancelWord(text string) bool {
	return wordIn(text, e.lex.CancelWords)
}

func (e *Engine) isSkipWord(text string) bool {
	return wordIn(text, e.lex.SkipWords)
}

func wordIn(text string, words []string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, w := range words {
		if lowered == w {
			return true
		}
	}
	return false
}

// isPriorityField reports whether a display-form field name is the
// priority column, which gets a fixed three-way choice instead of free text.
func (e *Engine) isPriorityField(name string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(name)), e.lex.PriorityHint)
}

// parseKeyValues extracts "Поле=значение; Поле=значение" updates from a
// free-text reply. Pairs separate on ";" or newlines; within a pair the
// first ":", "=" or " - " splits key from value. Keys match missing fields
// case-insensitively, marker stripped. Returns header index to value.
func parseKeyValues(text string, missing []model.Field) map[int]string {
	byName := make(map[string]int, len(missing))
	for _, f := range missing {
		byName[strings.ToLower(f.Name)] = f.Index
	}

	var lines []string
	for _, part := range strings.Split(text, ";") {
		for _, line := range strings.Split(part, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}

	updates := make(map[int]string)
	for _, line := range lines {
		key, value, ok := splitPair(line)
		if !ok {
			continue
		}
		norm := strings.ToLower(model.CleanHeader(key))
		if idx, found := byName[norm]; found {
			updates[idx] = strings.TrimSpace(value)
		}
	}
	return updates
}

func splitPair(line string) (key, value string, ok bool) {
	for _, sep := range []string{":", "=", " - "} {
		if k, v, found := strings.Cut(line, sep); found {
			return k, v, true
		}
	}
	return "", "", false
}

// requiredPrompt renders the fill-in request for the given missing fields.
func requiredPrompt(missing []model.Field) string {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = f.Name
	}
	return "Нужно заполнить обязательные поля:\n" +
		strings.Join(names, ", ") + "\n\n" +
		"Напишите ответ так:\n" +
		"Поле=значение; Поле=значение\n" +
		"Пример: Приоритет=Высокий\n\n" +
		"Можно нажать «Пропустить» или написать «Отмена»."
}

func requiredChoices() []Choice {
	return []Choice{
		{Label: "Пропустить", Data: ChoiceSkip},
		{Label: "Отмена", Data: ChoiceCancel},
	}
}

func priorityChoices() []Choice {
	return []Choice{
		{Label: "Низкий", Data: ChoicePriorityLow},
		{Label: "Средний", Data: ChoicePriorityMedium},
		{Label: "Высокий", Data: ChoicePriorityHigh},
		{Label: "Пропустить", Data: ChoiceSkip},
		{Label: "Отмена", Data: ChoiceCancel},
	}
}

func duplicateChoices() []Choice {
	return []Choice{
		{Label: "Добавить", Data: ChoiceDuplicateAdd},
		{Label: "Не добавлять", Data: ChoiceDuplicateSkip},
	}
}
