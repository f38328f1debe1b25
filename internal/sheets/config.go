// Package sheets implements the tabular store adapter on Google Sheets.
package sheets

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Reserved worksheet names that never hold category rows.
const (
	// SettingsSheet maps category names to their free-text descriptions.
	SettingsSheet = "Settings"
	// PromptsSheet holds optional prompt overrides keyed by prompt name.
	PromptsSheet = "Prompts"
	// AuditSheet receives one row per processed utterance.
	AuditSheet = "Inbox"
)

// Config holds the configuration for the Google Sheets store.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	RetryAttempts      int
	RetryDelay         time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// LoadFromEnv loads the configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	c.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	c.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	c.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	c.ServiceAccountPath = os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	c.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	return c.Validate()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required")
	}

	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured: provide either a service account path or OAuth2 credentials")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	return nil
}

// IsReserved reports whether sheet is one of the system worksheets.
// The comparison ignores case so renamed copies stay excluded.
func IsReserved(sheet string) bool {
	switch strings.ToLower(strings.TrimSpace(sheet)) {
	case "settings", "prompts", "inbox", "botsettings":
		return true
	}
	return false
}
