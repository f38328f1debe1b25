package engine

import "strings"

// FamilyKind names one of the keyword families the heuristics reason about.
type FamilyKind string

const (
	FamilyTask    FamilyKind = "task"
	FamilyIdea    FamilyKind = "idea"
	FamilyExpense FamilyKind = "expense"
)

// Family binds one keyword family to the substrings that recognize it.
// Category membership is resolved dynamically by matching category names
// against NameHints, so renaming a sheet never requires a code change.
type Family struct {
	Kind FamilyKind
	// NameHints match against category names to find the family's sheet.
	NameHints []string
	// Signals mark a clause as explicitly belonging to this family.
	Signals []string
	// Score keywords rank a clause between competing families.
	Score []string
	// Backstop keywords re-scan the raw transcript for items the LLM
	// split missed.
	Backstop []string
	// Expand keywords locate the full source sentence for a short
	// item fragment.
	Expand []string
	// SheetFilter restricts delete-candidate scans to matching sheets.
	SheetFilter []string
}

// Lexicon is the configurable keyword table behind every language-specific
// heuristic in the engine. Defaults cover Russian with English fallbacks.
type Lexicon struct {
	Families []Family

	// DefaultExpand is used for expansion when an item's category matches
	// no family.
	DefaultExpand []string

	// Intent heuristics.
	DeleteVerbs    []string
	Interrogatives []string

	// Clause segmentation.
	ClauseMarkers []string
	Conjunction   string

	// Required-field replies.
	CancelWords  []string
	SkipWords    []string
	PriorityHint string
	// PriorityValues maps choice codes to stored cell values.
	PriorityValues map[string]string

	// Column alias sets, keyed by lowercased display header.
	RawColumns     map[string]bool
	SummaryColumns map[string]bool
	// PreviewColumns extends SummaryColumns for rendering previews.
	PreviewColumns map[string]bool
	DateColumns    map[string]bool
	DueColumns     map[string]bool
	AddedColumn    string

	// Date phrases.
	RelativeDays   []RelativeDay
	Weekdays       map[string]int
	NextWeekMarker string

	// Summary generation.
	FillerPrefixes []string
	FillerSuffixes []string

	// Delete-query tokenization.
	StopWords map[string]bool
}

// RelativeDay maps a phrase to a day offset from today. Order matters:
// "послезавтра" must match before its suffix "завтра".
type RelativeDay struct {
	Phrase string
	Offset int
}

// DefaultLexicon returns the built-in Russian/English keyword table.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Families: []Family{
			{
				Kind:        FamilyTask,
				NameHints:   []string{"задач", "task", "todo", "to-do"},
				Signals:     []string{"задач", "задача", "созвон", "позвон", "нужно", "надо"},
				Score:       []string{"задач", "задача", "нужно", "надо", "созвон", "позвон", "сделать", "видео"},
				Backstop:    []string{"надо", "нужно", "задач", "сделать", "поставить", "видео", "созвон", "позвон", "встрет"},
				Expand:      []string{"задач", "нужно", "надо", "сделать", "созвон", "позвон", "видео"},
				SheetFilter: []string{"задач", "task"},
			},
			{
				Kind:        FamilyIdea,
				NameHints:   []string{"иде", "idea"},
				Signals:     []string{"иде", "идея", "мечта", "план", "создать"},
				Score:       []string{"иде", "идея", "план", "создать", "курс", "клуб", "мечта"},
				Backstop:    []string{"иде", "идея", "idea", "мечта", "план", "создать"},
				Expand:      []string{"иде", "идея", "хочу", "план", "курс", "запустить", "создать"},
				SheetFilter: []string{"иде", "idea"},
			},
			{
				Kind:        FamilyExpense,
				NameHints:   []string{"трат", "расход", "expense", "spend"},
				Signals:     []string{"потрат", "заплатил", "купил", "расход", "руб", "доллар", "магазин"},
				Score:       []string{"потрат", "заплатил", "купил", "расход", "руб", "доллар", "магазин"},
				Backstop:    []string{"потрат", "заплатил", "купил", "расход", "expense", "spend", "руб", "рубл", "доллар", "магазин"},
				Expand:      []string{"потрат", "купил", "заплатил", "руб", "доллар", "подписк", "магазин"},
				SheetFilter: []string{"трат", "расход", "expense", "spend"},
			},
		},
		DefaultExpand: []string{"надо", "нужно", "хочу", "потрат", "иде", "задач"},

		DeleteVerbs:    []string{"удали", "удалить", "убери", "отмени", "не надо", "remove", "delete"},
		Interrogatives: []string{"вопрос", "спроси", "узнай", "что ", "как ", "почему", "?"},

		ClauseMarkers: []string{
			"также", "так же", "дополнительно", "кроме того",
			"а еще", "и еще", "и у меня", "и я", "и также", "плюс",
		},
		Conjunction: " и ",

		CancelWords:  []string{"отмена", "cancel", "стоп"},
		SkipWords:    []string{"off", "пропустить", "skip"},
		PriorityHint: "приоритет",
		PriorityValues: map[string]string{
			"low":    "Низкий",
			"medium": "Средний",
			"high":   "Высокий",
		},

		RawColumns: map[string]bool{
			"сырой текст": true, "raw text": true, "original text": true, "исходный текст": true,
		},
		SummaryColumns: map[string]bool{
			"суть": true, "описание": true, "summary": true,
		},
		PreviewColumns: map[string]bool{
			"суть": true, "описание": true, "summary": true, "на что потрачено": true,
		},
		DateColumns: map[string]bool{
			"дата": true, "дата добавления": true, "дата выполнения": true, "date": true, "due date": true,
		},
		DueColumns: map[string]bool{
			"дата выполнения": true, "дата": true, "date": true, "due date": true,
		},
		AddedColumn: "дата добавления",

		RelativeDays: []RelativeDay{
			{Phrase: "послезавтра", Offset: 2},
			{Phrase: "завтра", Offset: 1},
			{Phrase: "сегодня", Offset: 0},
		},
		Weekdays: map[string]int{
			"понед":   0,
			"втор":    1,
			"сред":    2,
			"четвер":  3,
			"пятниц":  4,
			"суббот":  5,
			"воскрес": 6,
		},
		NextWeekMarker: "следующ",

		FillerPrefixes: []string{
			"слушай", "а слушай", "мне надо", "мне нужно", "нужно",
			"я хочу", "хочу", "можешь", "можешь пожалуйста", "пожалуйста", "надо",
		},
		FillerSuffixes: []string{
			"можешь поставить задачку", "можешь поставить задачу",
			"поставь задачку", "поставь задачу",
			"добавь в задачи", "добавь задачу",
			"запомни это", "пожалуйста",
		},

		StopWords: map[string]bool{
			"удали": true, "удалить": true, "удалип": true, "удаление": true,
			"за": true, "последние": true, "последний": true, "последнюю": true, "последних": true,
			"день": true, "дня": true, "дней": true,
			"сегодня": true, "вчера": true, "позавчера": true,
			"задачи": true, "задача": true, "task": true, "tasks": true,
		},
	}
}

// FindFamily returns the family with the given kind, or nil.
func (l *Lexicon) FindFamily(kind FamilyKind) *Family {
	for i := range l.Families {
		if l.Families[i].Kind == kind {
			return &l.Families[i]
		}
	}
	return nil
}

// CategoryFor resolves a family to a concrete category name by substring
// matching against NameHints, or "" when no category belongs to it.
func (f *Family) CategoryFor(categories []string) string {
	for _, name := range categories {
		lowered := strings.ToLower(strings.TrimSpace(name))
		for _, hint := range f.NameHints {
			if strings.Contains(lowered, hint) {
				return name
			}
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func keywordScore(text string, keywords []string) int {
	score := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			score++
		}
	}
	return score
}
