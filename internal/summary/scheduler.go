package summary

import (
	"context"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/settings"
)

// Sender delivers a digest to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// SettingsSource exposes the live digest options.
type SettingsSource interface {
	Current() settings.Settings
	Location() *time.Location
}

// Scheduler fires the digest once per due day at the configured hour.
// Weekly digests go out on Sundays.
type Scheduler struct {
	builder  *Builder
	sender   Sender
	source   SettingsSource
	interval time.Duration

	clock    func() time.Time
	lastSent string
}

// NewScheduler wires a scheduler; interval is the poll period, one minute
// by default.
func NewScheduler(builder *Builder, sender Sender, source SettingsSource, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		builder:  builder,
		sender:   sender,
		source:   source,
		interval: interval,
		clock:    time.Now,
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling check. Exposed for tests and for an immediate
// check at startup.
func (s *Scheduler) Tick(ctx context.Context) {
	opts := s.source.Current()
	if opts.DigestMode == settings.DigestOff || opts.DigestChatID == 0 {
		return
	}

	now := s.clock().In(s.source.Location())
	if now.Hour() < opts.DigestHour {
		return
	}
	day := now.Format("2006-01-02")
	if s.lastSent == day {
		return
	}

	period := PeriodDaily
	if opts.DigestMode == settings.DigestWeekly {
		if now.Weekday() != time.Sunday {
			return
		}
		period = PeriodWeekly
	}

	text, ok, err := s.builder.Build(ctx, period, now)
	if err != nil {
		common.LogError(err, "failed to build digest", nil)
		return
	}
	// An empty window still counts as handled for the day.
	s.lastSent = day
	if !ok {
		return
	}
	if err := s.sender.SendMessage(ctx, opts.DigestChatID, text); err != nil {
		common.LogError(err, "failed to send digest", common.Fields{"chat_id": opts.DigestChatID})
		s.lastSent = ""
		return
	}
	common.LogInfo("digest sent", common.Fields{
		"period":  string(period),
		"chat_id": opts.DigestChatID,
	})
}
