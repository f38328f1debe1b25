package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHeader(t *testing.T) {
	assert.Equal(t, "Задача", CleanHeader("Задача*"))
	assert.Equal(t, "Сумма", CleanHeader("  Сумма*  "))
	assert.Equal(t, "Дата", CleanHeader("Дата"))
	assert.Equal(t, "", CleanHeader("*"))
}

func TestIsRequired(t *testing.T) {
	assert.True(t, IsRequired("Задача*"))
	assert.True(t, IsRequired("Приоритет* "))
	assert.False(t, IsRequired("Дата"))
	assert.False(t, IsRequired("За*метка"))
}

func TestCleanHeaders(t *testing.T) {
	got := CleanHeaders([]string{"Дата", "Задача*", "Приоритет*"})
	assert.Equal(t, []string{"Дата", "Задача", "Приоритет"}, got)
}

func TestMissingRequired(t *testing.T) {
	headers := []string{"Дата", "Задача*", "Приоритет*", "Заметка"}

	t.Run("reports empty mandatory cells in order", func(t *testing.T) {
		missing := MissingRequired(headers, []string{"11.02.2026", "", "  ", "что-то"})
		assert.Equal(t, []Field{
			{Name: "Задача", Index: 1},
			{Name: "Приоритет", Index: 2},
		}, missing)
	})

	t.Run("filled row has no missing", func(t *testing.T) {
		assert.Empty(t, MissingRequired(headers, []string{"", "сдать отчет", "Высокий", ""}))
	})

	t.Run("short row counts as empty", func(t *testing.T) {
		missing := MissingRequired(headers, []string{"11.02.2026"})
		assert.Len(t, missing, 2)
	})
}

func TestFindHeaderIndex(t *testing.T) {
	headers := []string{"Дата добавления", "Задача*", "Сырой текст"}
	names := map[string]bool{"сырой текст": true}

	assert.Equal(t, 2, FindHeaderIndex(headers, names))
	assert.Equal(t, -1, FindHeaderIndex(headers, map[string]bool{"сумма": true}))
}

func TestValueByHeader(t *testing.T) {
	headers := []string{"Дата", "Сумма*"}
	row := []string{"11.02.2026", " 200 "}
	names := map[string]bool{"сумма": true}

	assert.Equal(t, "200", ValueByHeader(headers, row, names))
	assert.Equal(t, "", ValueByHeader(headers, []string{"11.02.2026"}, names))
	assert.Equal(t, "", ValueByHeader(headers, row, map[string]bool{"нет": true}))
}

func TestPadRow(t *testing.T) {
	headers := []string{"a", "b", "c"}
	assert.Equal(t, []string{"x", "", ""}, PadRow(headers, []string{"x"}))
	assert.Equal(t, []string{"x", "y", "z"}, PadRow(headers, []string{"x", "y", "z"}))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "купить кофе", NormalizeText("  Купить\n\tКОФЕ  "))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestBuildPreview(t *testing.T) {
	t.Run("joins non-empty cells", func(t *testing.T) {
		got := BuildPreview("Траты", []string{"Дата", "Сумма*", "На что"}, []string{"10.02.2026", "200", ""}, 120)
		assert.Equal(t, "[Траты] Дата: 10.02.2026; Сумма: 200", got)
	})

	t.Run("caps at limit with ellipsis", func(t *testing.T) {
		long := strings.Repeat("о", 200)
		got := BuildPreview("Идеи", []string{"Идея"}, []string{long}, 50)
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.Contains(t, got, "[Идеи] ")
	})

	t.Run("short row tolerated", func(t *testing.T) {
		got := BuildPreview("Задачи", []string{"Дата", "Задача*"}, []string{"11.02.2026"}, 120)
		assert.Equal(t, "[Задачи] Дата: 11.02.2026", got)
	})
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "короткий", Shorten("короткий", 20))
	long := strings.Repeat("д", 30)
	got := Shorten(long, 10)
	assert.Len(t, []rune(got), 10)
	assert.True(t, strings.HasSuffix(got, "..."))
}
