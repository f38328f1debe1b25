package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/engine"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/qa"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/session"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/sheets"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/summary"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/telegram"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Long: `Start the Telegram long-poll loop and the digest scheduler.
Runs until interrupted.`,
		RunE: runServe,
	}
	cmd.Flags().Int64Slice("allow-user", nil, "Telegram user id allowed to talk to the bot (repeatable)")
	cmd.Flags().StringSlice("allow-username", nil, "Telegram username allowed to talk to the bot (repeatable)")
	_ = viper.BindPFlag("telegram.allowed_user_ids", cmd.Flags().Lookup("allow-user"))
	_ = viper.BindPFlag("telegram.allowed_usernames", cmd.Flags().Lookup("allow-username"))
	return cmd
}

// digestSender adapts the bot client to the scheduler's sender contract.
type digestSender struct {
	api *telegram.Client
}

func (s digestSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.api.SendMessage(ctx, chatID, text, nil)
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	token := viper.GetString("telegram.token")
	if token == "" {
		return fmt.Errorf("telegram.token is required (or BRAINBOT_TELEGRAM_TOKEN)")
	}
	allowedIDs := viper.GetIntSlice("telegram.allowed_user_ids")
	allowedNames := viper.GetStringSlice("telegram.allowed_usernames")
	if len(allowedIDs) == 0 && len(allowedNames) == 0 {
		return fmt.Errorf("no allowed users configured; the bot would ignore everyone")
	}

	store, err := initSheets(ctx)
	if err != nil {
		return err
	}

	chat, err := initLLM()
	if err != nil {
		return err
	}
	defer chat.Close()

	botSettings, err := initSettings()
	if err != nil {
		return fmt.Errorf("failed to open bot settings: %w", err)
	}

	dbPath, err := sessionDBPath()
	if err != nil {
		return err
	}
	sessions, err := session.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = sessions.Close() }()

	answerer := qa.New(store, chat, nil)
	eng := engine.New(store, chat, answerer, botSettings, nil, engine.Config{
		AuditSheet: sheets.AuditSheet,
	})

	api := telegram.NewClient(token)
	ids := make([]int64, 0, len(allowedIDs))
	for _, id := range allowedIDs {
		ids = append(ids, int64(id))
	}
	dispatcher := telegram.NewDispatcher(api, eng, sessions, chat, telegram.Config{
		AllowedUserIDs:   ids,
		AllowedUsernames: allowedNames,
	})

	builder := summary.NewBuilder(store, sheets.AuditSheet)
	scheduler := summary.NewScheduler(builder, digestSender{api: api}, botSettings, time.Minute)
	go scheduler.Run(ctx)

	slog.Info("brainbot is listening", "allowed_ids", len(ids), "allowed_usernames", len(allowedNames))
	if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("update loop stopped: %w", err)
	}
	return nil
}
