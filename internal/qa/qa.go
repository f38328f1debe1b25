// Package qa answers free-form questions over the accumulated records. The
// whole store rarely fits one completion, so the corpus is chunked and the
// question runs map-reduce style: one pass per chunk, then a combining pass
// over the partial answers.
package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	srv "github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
)

const (
	// chunkLimit caps one corpus chunk in runes.
	chunkLimit = 5000
	// maxChunks bounds the number of map calls per question.
	maxChunks = 12
)

const answerSystem = "Ты отвечаешь на вопрос по записям личной базы. " +
	"Используй только предоставленные данные. " +
	"Если ответа в данных нет, так и скажи. Отвечай кратко, по-русски."

const combineSystem = "Тебе дают несколько частичных ответов на один вопрос. " +
	"Объедини их в один связный ответ. Противоречия отметь явно."

// Service runs the ask path.
type Service struct {
	store    srv.TabularStore
	chat     srv.ChatModel
	reserved map[string]bool
}

// New builds a QA service. reserved sheets are excluded from the corpus.
func New(store srv.TabularStore, chat srv.ChatModel, reserved map[string]bool) *Service {
	if reserved == nil {
		reserved = map[string]bool{
			"settings": true, "prompts": true, "botsettings": true,
		}
	}
	return &Service{store: store, chat: chat, reserved: reserved}
}

// Answer responds to a question over every non-reserved sheet's rows.
func (s *Service) Answer(ctx context.Context, question, modelName string) (string, error) {
	corpus, err := s.collect(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(corpus) == "" {
		return "Записей пока нет, отвечать не по чему.", nil
	}

	chunks := splitChunks(corpus, chunkLimit)
	if len(chunks) > maxChunks {
		common.LogInfo("qa corpus truncated", common.Fields{
			"chunks": len(chunks),
			"kept":   maxChunks,
		})
		// Recent records live at the end of each sheet, so keep the tail.
		chunks = chunks[len(chunks)-maxChunks:]
	}

	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		prompt := "Вопрос: " + question + "\n\nДанные:\n" + chunk
		answer, err := s.chat.ChatText(ctx, answerSystem, prompt, modelName)
		if err != nil {
			return "", fmt.Errorf("answering over chunk: %w", err)
		}
		answer = strings.TrimSpace(answer)
		if answer != "" && !isNoData(answer) {
			partials = append(partials, answer)
		}
	}

	switch len(partials) {
	case 0:
		return "В записях не нашлось ответа на этот вопрос.", nil
	case 1:
		return partials[0], nil
	}

	prompt := "Вопрос: " + question + "\n\nЧастичные ответы:\n- " + strings.Join(partials, "\n- ")
	combined, err := s.chat.ChatText(ctx, combineSystem, prompt, modelName)
	if err != nil {
		return "", fmt.Errorf("combining partial answers: %w", err)
	}
	return strings.TrimSpace(combined), nil
}

// collect renders every non-reserved sheet as a "[sheet] h: v; h: v" block,
// one line per row.
func (s *Service) collect(ctx context.Context) (string, error) {
	names, err := s.store.ListSheets(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sheets: %w", err)
	}

	var b strings.Builder
	for _, name := range names {
		if s.reserved[strings.ToLower(strings.TrimSpace(name))] {
			continue
		}
		rows, err := s.store.AllRows(ctx, name)
		if err != nil {
			common.LogError(err, "failed to read sheet for qa corpus", common.Fields{"sheet": name})
			continue
		}
		if len(rows) < 2 {
			continue
		}
		headers := rows[0]
		for _, row := range rows[1:] {
			line := renderRow(name, headers, row)
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func renderRow(sheet string, headers, row []string) string {
	var pairs []string
	for idx, header := range headers {
		if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
			continue
		}
		pairs = append(pairs, strings.TrimSuffix(strings.TrimSpace(header), "*")+": "+strings.TrimSpace(row[idx]))
	}
	if len(pairs) == 0 {
		return ""
	}
	return "[" + sheet + "] " + strings.Join(pairs, "; ")
}

// splitChunks cuts the corpus at line boundaries into pieces of at most
// limit runes. A single oversized line becomes its own chunk.
func splitChunks(corpus string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range strings.Split(corpus, "\n") {
		if line == "" {
			continue
		}
		lineLen := len([]rune(line)) + 1
		if currentLen > 0 && currentLen+lineLen > limit {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			currentLen = 0
		}
		current.WriteString(line)
		current.WriteByte('\n')
		currentLen += lineLen
	}
	if currentLen > 0 {
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
	}
	return chunks
}

// isNoData filters map-phase answers that only state the chunk held
// nothing relevant, so they do not pollute the combining pass.
func isNoData(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, marker := range []string{"нет ответа", "нет данных", "не нашлось", "нет информации"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
