package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

func TestCancelAndSkipWords(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	assert.True(t, e.isCancelWord("отмена"))
	assert.True(t, e.isCancelWord("  Стоп "))
	assert.True(t, e.isCancelWord("Cancel"))
	assert.False(t, e.isCancelWord("отменить встречу"))

	assert.True(t, e.isSkipWord("пропустить"))
	assert.True(t, e.isSkipWord("Skip"))
	assert.True(t, e.isSkipWord("off"))
	assert.False(t, e.isSkipWord("пропустить занятие"))
}

func TestIsPriorityField(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	assert.True(t, e.isPriorityField("Приоритет"))
	assert.True(t, e.isPriorityField("приоритет задачи"))
	assert.False(t, e.isPriorityField("Сумма"))
}

func TestParseKeyValues(t *testing.T) {
	missing := []model.Field{
		{Name: "Сумма", Index: 1},
		{Name: "Приоритет", Index: 3},
	}

	tests := []struct {
		name  string
		input string
		want  map[int]string
	}{
		{
			name:  "equals separator",
			input: "Сумма=200",
			want:  map[int]string{1: "200"},
		},
		{
			name:  "colon separator",
			input: "Приоритет: Высокий",
			want:  map[int]string{3: "Высокий"},
		},
		{
			name:  "dash separator",
			input: "Сумма - 200",
			want:  map[int]string{1: "200"},
		},
		{
			name:  "semicolon separated pairs",
			input: "Сумма=200; Приоритет=Высокий",
			want:  map[int]string{1: "200", 3: "Высокий"},
		},
		{
			name:  "newline separated pairs",
			input: "Сумма: 200\nПриоритет: Низкий",
			want:  map[int]string{1: "200", 3: "Низкий"},
		},
		{
			name:  "keys are case-insensitive",
			input: "сумма=200",
			want:  map[int]string{1: "200"},
		},
		{
			name:  "unknown keys ignored",
			input: "Дата=11.02.2026",
			want:  map[int]string{},
		},
		{
			name:  "plain text yields nothing",
			input: "двести рублей",
			want:  map[int]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyValues(tt.input, missing))
		})
	}
}

func TestRequiredPrompt(t *testing.T) {
	missing := []model.Field{{Name: "Сумма", Index: 1}, {Name: "Приоритет", Index: 3}}
	prompt := requiredPrompt(missing)

	assert.Contains(t, prompt, "Сумма, Приоритет")
	assert.Contains(t, prompt, "Поле=значение")
}
