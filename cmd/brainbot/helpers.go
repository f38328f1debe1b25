package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/config"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/llm"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/settings"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/sheets"
)

// initSheets builds the Google Sheets store from config, falling back to
// the GOOGLE_SHEETS_* environment variables the adapter reads natively.
func initSheets(ctx context.Context) (*sheets.Store, error) {
	cfg := sheets.DefaultConfig()
	cfg.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
	cfg.ServiceAccountPath = config.ExpandPath(viper.GetString("sheets.service_account_path"))
	cfg.ClientID = viper.GetString("sheets.client_id")
	cfg.ClientSecret = viper.GetString("sheets.client_secret")
	cfg.RefreshToken = viper.GetString("sheets.refresh_token")

	if cfg.SpreadsheetID == "" {
		if err := cfg.LoadFromEnv(); err != nil {
			return nil, fmt.Errorf("sheets configuration: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sheets configuration: %w", err)
	}

	store, err := sheets.NewStore(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the spreadsheet: %w", err)
	}
	return store, nil
}

// initLLM builds the OpenAI client from config.
func initLLM() (*llm.Client, error) {
	cfg := llm.DefaultConfig()
	cfg.APIKey = viper.GetString("llm.api_key")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := viper.GetString("llm.base_url"); v != "" {
		cfg.BaseURL = v
	}
	if v := viper.GetString("llm.router_model"); v != "" {
		cfg.RouterModel = v
	}
	if v := viper.GetString("llm.extract_model"); v != "" {
		cfg.ExtractModel = v
	}
	if v := viper.GetString("llm.transcribe_model"); v != "" {
		cfg.TranscribeModel = v
	}
	if v := viper.GetDuration("llm.timeout"); v > 0 {
		cfg.Timeout = v
	}
	return llm.NewClient(cfg)
}

// initSettings opens the persisted bot settings next to the session db.
func initSettings() (*settings.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	defaults := settings.Settings{
		Model:      viper.GetString("llm.router_model"),
		Timezone:   viper.GetString("timezone"),
		DigestMode: settings.DigestOff,
		DigestHour: 21,
	}
	return settings.NewStore(filepath.Join(dir, "settings.json"), defaults)
}

func dataDir() (string, error) {
	if dir := viper.GetString("data_dir"); dir != "" {
		dir = config.ExpandPath(dir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
		return dir, nil
	}
	return config.DataDir()
}

func sessionDBPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

func snapshotPath() string {
	if p := viper.GetString("export.path"); p != "" {
		return config.ExpandPath(p)
	}
	return fmt.Sprintf("brainbot-export-%s.db", time.Now().Format("2006-01-02"))
}
