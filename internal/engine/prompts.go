package engine

import (
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// Prompt override keys looked up in the Prompts worksheet. A missing key
// falls back to the compiled-in default.
const (
	RouterPromptKey  = "router"
	ExtractPromptKey = "extract"
)

const defaultRouterSystem = "Ты классификатор заметок. " +
	"Тебе дают текст и список категорий с описаниями. " +
	"Выбери ровно одну категорию из списка. Отвечай строго JSON."

const defaultRouterUser = "Текст:\n{text}\n\n" +
	"Категории:\n{categories}\n\n" +
	`Верни JSON: {"category": "точное имя категории", "reasoning": "кратко почему"}.`

const defaultExtractSystem = "Ты извлекаешь структурированные данные из заметки. " +
	"Тебе дают текст и список колонок. Заполни значения по колонкам. " +
	"Если данных для колонки нет, верни пустую строку. " +
	"Даты пиши в формате ДД.ММ.ГГГГ. Отвечай строго JSON."

const defaultExtractUser = "Текст:\n{text}\n\n" +
	"Колонки: {headers}\n" +
	"Сегодня: {today}\n\n" +
	"Верни JSON-объект, где ключи совпадают с именами колонок."

const defaultMultiSystem = "Ты разбираешь голосовую заметку на отдельные записи. " +
	"Одно сообщение может содержать несколько несвязанных пунктов: " +
	"задачу, трату, идею. Отвечай строго JSON."

const defaultMultiUser = "Текст:\n{text}\n\n" +
	"Категории:\n{categories}\n\n" +
	`Верни JSON: {"items": [{"category": "имя категории", "text": "полный текст пункта"}]}. ` +
	"Если пункт один, верни список из одного элемента. " +
	"Не выдумывай пункты, которых нет в тексте."

const defaultIntentSystem = "Ты определяешь намерение пользователя. " +
	"Варианты: add (добавить запись), delete (удалить запись), ask (задать вопрос). " +
	"Отвечай строго JSON."

const defaultIntentUser = "Текст пользователя:\n{text}\n\n" +
	`Верни JSON: {"action": "add|delete|ask", "query": "..."}. ` +
	"Если action=add, query может быть пустым."

const defaultThinkingSystem = "Ты помогаешь привести в порядок длинный поток мыслей. " +
	"Сгруппируй содержание по блокам. Отвечай строго JSON."

const defaultThinkingUser = "Текст:\n{text}\n\n" +
	`Верни JSON: {"summary": "2-3 предложения", "ideas": [...], ` +
	`"tasks": [...], "expenses": [...], "other": [...]}. ` +
	"Пустые блоки верни пустыми списками."

// expandTemplate substitutes {key} placeholders. Values may themselves
// contain braces, so substitution happens through collision-free tokens
// rather than naive sequential replacement.
func expandTemplate(template string, mapping map[string]string) string {
	tokens := make(map[string]string, len(mapping))
	result := template
	for key, value := range mapping {
		token := "__PLACEHOLDER_" + strings.ToUpper(key) + "__"
		tokens[token] = value
		result = strings.ReplaceAll(result, "{"+key+"}", token)
	}
	for token, value := range tokens {
		result = strings.ReplaceAll(result, token, value)
	}
	return result
}

// catalogueText renders the category list for a prompt, one "- name: desc"
// line per category.
func catalogueText(categories model.Catalogue) string {
	var lines []string
	for _, c := range categories {
		if c.Description != "" {
			lines = append(lines, "- "+c.Name+": "+c.Description)
		} else {
			lines = append(lines, "- "+c.Name)
		}
	}
	return strings.Join(lines, "\n")
}
