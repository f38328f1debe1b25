package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/engine"
	srv "github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/session"
)

// BotAPI is the slice of the client the dispatcher needs.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboard) (Message, error)
	AnswerCallback(ctx context.Context, callbackID string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	GetFile(ctx context.Context, fileID string) (File, error)
	DownloadFile(ctx context.Context, filePath, destPath string) error
}

// Config tunes the dispatcher. Zero values take defaults.
type Config struct {
	// AllowedUserIDs and AllowedUsernames gate every update. Both empty
	// means the bot answers no one.
	AllowedUserIDs   []int64
	AllowedUsernames []string
	// MaxVoiceSeconds rejects voice notes longer than this.
	MaxVoiceSeconds int
	// LongVoiceSeconds routes longer voice notes into note-structuring
	// mode instead of the intake pipeline.
	LongVoiceSeconds int
	// MessageLimit chunks outbound messages at this many runes.
	MessageLimit int
	PollTimeout  time.Duration
	TempDir      string
}

func (c *Config) applyDefaults() {
	if c.MaxVoiceSeconds <= 0 {
		c.MaxVoiceSeconds = 12 * 60
	}
	if c.LongVoiceSeconds <= 0 {
		c.LongVoiceSeconds = 2 * 60
	}
	if c.MessageLimit <= 0 {
		c.MessageLimit = 3500
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
}

// Dispatcher pulls updates, authorizes them, turns voice into text and
// routes everything through the engine.
type Dispatcher struct {
	api         BotAPI
	engine      *engine.Engine
	sessions    session.Store
	transcriber srv.Transcriber
	cfg         Config

	allowedIDs   map[int64]bool
	allowedNames map[string]bool
}

// NewDispatcher wires the transport.
func NewDispatcher(api BotAPI, eng *engine.Engine, sessions session.Store, transcriber srv.Transcriber, cfg Config) *Dispatcher {
	cfg.applyDefaults()
	ids := make(map[int64]bool, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		ids[id] = true
	}
	names := make(map[string]bool, len(cfg.AllowedUsernames))
	for _, name := range cfg.AllowedUsernames {
		names[strings.ToLower(strings.TrimPrefix(name, "@"))] = true
	}
	return &Dispatcher{
		api:          api,
		engine:       eng,
		sessions:     sessions,
		transcriber:  transcriber,
		cfg:          cfg,
		allowedIDs:   ids,
		allowedNames: names,
	}
}

// Run long-polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, err := d.api.GetUpdates(ctx, offset, d.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			common.LogError(err, "getUpdates failed, backing off", nil)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			if update.ID >= offset {
				offset = update.ID + 1
			}
			d.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update end to end.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update Update) {
	switch {
	case update.Callback != nil:
		d.handleCallback(ctx, update.Callback)
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	}
}

func (d *Dispatcher) authorized(from *User) bool {
	if from == nil {
		return false
	}
	if d.allowedIDs[from.ID] {
		return true
	}
	return from.Username != "" && d.allowedNames[strings.ToLower(from.Username)]
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *Message) {
	if !d.authorized(msg.From) {
		common.LogInfo("unauthorized message ignored", common.Fields{"user_id": userID(msg.From)})
		return
	}

	switch {
	case msg.Voice != nil:
		d.handleVoice(ctx, msg, msg.Voice)
	case msg.Audio != nil:
		d.handleVoice(ctx, msg, msg.Audio)
	case strings.TrimSpace(msg.Text) != "":
		d.handleText(ctx, msg)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "/start" {
		d.reply(ctx, msg.Chat.ID, "Пришлите голосовое сообщение или текст: задачу, трату или идею. Я разберу и запишу.", nil)
		return
	}

	sess, err := d.sessions.Load(ctx, sessionID(msg.Chat.ID))
	if err != nil {
		common.LogError(err, "failed to load session", nil)
		d.reply(ctx, msg.Chat.ID, "Внутренняя ошибка. Попробуйте еще раз.", nil)
		return
	}
	out := d.engine.HandleReply(ctx, sess, text)
	d.finish(ctx, msg.Chat.ID, sess, out)
}

func (d *Dispatcher) handleVoice(ctx context.Context, msg *Message, voice *Voice) {
	chatID := msg.Chat.ID
	if voice.Duration > d.cfg.MaxVoiceSeconds {
		d.reply(ctx, chatID, fmt.Sprintf(
			"Голосовое слишком длинное (%d мин). Максимум %d минут.",
			voice.Duration/60, d.cfg.MaxVoiceSeconds/60), nil)
		return
	}

	if err := d.api.SendChatAction(ctx, chatID, "typing"); err != nil {
		common.LogDebug("sendChatAction failed", common.Fields{"error": err.Error()})
	}

	transcript, err := d.transcribe(ctx, voice)
	if err != nil {
		common.LogError(err, "voice transcription failed", common.Fields{"duration": voice.Duration})
		d.reply(ctx, chatID, "Не удалось расшифровать голосовое. Попробуйте еще раз.", nil)
		return
	}

	sess, err := d.sessions.Load(ctx, sessionID(chatID))
	if err != nil {
		common.LogError(err, "failed to load session", nil)
		d.reply(ctx, chatID, "Внутренняя ошибка. Попробуйте еще раз.", nil)
		return
	}

	var out engine.Outcome
	if voice.Duration >= d.cfg.LongVoiceSeconds {
		out = d.engine.HandleLongUtterance(ctx, sess, transcript)
	} else {
		out = d.engine.HandleUtterance(ctx, sess, transcript)
	}
	d.finish(ctx, chatID, sess, out)
}

// transcribe downloads the voice file and runs speech-to-text under a
// duration-scaled timeout.
func (d *Dispatcher) transcribe(ctx context.Context, voice *Voice) (string, error) {
	file, err := d.api.GetFile(ctx, voice.FileID)
	if err != nil {
		return "", fmt.Errorf("resolving voice file: %w", err)
	}

	dest := filepath.Join(d.cfg.TempDir, "voice-"+voice.FileID+filepath.Ext(file.Path))
	if err := d.api.DownloadFile(ctx, file.Path, dest); err != nil {
		return "", fmt.Errorf("downloading voice file: %w", err)
	}
	defer os.Remove(dest)

	timeout := transcribeTimeout(voice.Duration)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transcript, err := d.transcriber.Transcribe(tctx, dest)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(transcript), nil
}

// transcribeTimeout scales with audio length: three times the duration,
// floored at 3 minutes and capped at 15.
func transcribeTimeout(durationSeconds int) time.Duration {
	seconds := 3 * durationSeconds
	if seconds < 180 {
		seconds = 180
	}
	if seconds > 900 {
		seconds = 900
	}
	return time.Duration(seconds) * time.Second
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if err := d.api.AnswerCallback(ctx, cb.ID); err != nil {
		common.LogDebug("answerCallbackQuery failed", common.Fields{"error": err.Error()})
	}
	if !d.authorized(cb.From) || cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	sess, err := d.sessions.Load(ctx, sessionID(chatID))
	if err != nil {
		common.LogError(err, "failed to load session", nil)
		return
	}
	out := d.engine.HandleChoice(ctx, sess, cb.Data)
	d.finish(ctx, chatID, sess, out)
}

// finish persists the session and renders the outcome.
func (d *Dispatcher) finish(ctx context.Context, chatID int64, sess *session.Session, out engine.Outcome) {
	if err := d.sessions.Save(ctx, sess); err != nil {
		common.LogError(err, "failed to save session", common.Fields{"session": sess.ID})
	}
	text, keyboard := RenderOutcome(out)
	if text == "" {
		return
	}
	d.reply(ctx, chatID, text, keyboard)
}

// reply sends text, chunked at the message limit; the keyboard rides on
// the last chunk.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboard) {
	chunks := chunkText(text, d.cfg.MessageLimit)
	for i, chunk := range chunks {
		var markup *InlineKeyboard
		if i == len(chunks)-1 {
			markup = keyboard
		}
		if _, err := d.api.SendMessage(ctx, chatID, chunk, markup); err != nil {
			common.LogError(err, "sendMessage failed", common.Fields{"chat_id": chatID})
			return
		}
	}
}

func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func userID(from *User) int64 {
	if from == nil {
		return 0
	}
	return from.ID
}

// chunkText splits text into pieces of at most limit runes, preferring
// newline boundaries.
func chunkText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	return chunks
}
