package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
	srv "github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store implements service.TabularStore on a single Google spreadsheet.
type Store struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

var _ srv.TabularStore = (*Store)(nil)

// NewStore creates a new Google Sheets store.
func NewStore(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Store{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return service, nil
}

func (s *Store) retryOpts() srv.RetryOptions {
	return srv.RetryOptions{
		MaxAttempts:  s.config.RetryAttempts,
		InitialDelay: s.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Headers returns the first row of sheet.
func (s *Store) Headers(ctx context.Context, sheet string) ([]string, error) {
	var headers []string
	err := common.WithRetry(ctx, func() error {
		resp, err := s.service.Spreadsheets.Values.
			Get(s.config.SpreadsheetID, rangeRef(sheet, "1:1")).
			Context(ctx).Do()
		if err != nil {
			return mapAPIError(sheet, err)
		}
		headers = headers[:0]
		if len(resp.Values) > 0 {
			for _, cell := range resp.Values[0] {
				headers = append(headers, fmt.Sprint(cell))
			}
		}
		return nil
	}, s.retryOpts())
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// AllRows returns every row of sheet, including the header row.
func (s *Store) AllRows(ctx context.Context, sheet string) ([][]string, error) {
	var rows [][]string
	err := common.WithRetry(ctx, func() error {
		resp, err := s.service.Spreadsheets.Values.
			Get(s.config.SpreadsheetID, quoteSheet(sheet)).
			Context(ctx).Do()
		if err != nil {
			return mapAPIError(sheet, err)
		}
		rows = rows[:0]
		for _, raw := range resp.Values {
			row := make([]string, len(raw))
			for i, cell := range raw {
				row[i] = fmt.Sprint(cell)
			}
			rows = append(rows, row)
		}
		return nil
	}, s.retryOpts())
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendRow appends row to the end of sheet.
func (s *Store) AppendRow(ctx context.Context, sheet string, row []string) error {
	values := make([]any, len(row))
	for i, cell := range row {
		values[i] = cell
	}
	body := &sheets.ValueRange{Values: [][]any{values}}

	return common.WithRetry(ctx, func() error {
		_, err := s.service.Spreadsheets.Values.
			Append(s.config.SpreadsheetID, rangeRef(sheet, "A1"), body).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return mapAPIError(sheet, err)
		}
		return nil
	}, s.retryOpts())
}

// DeleteRow removes the row at rowIndex (1-based, header row = 1) from sheet.
func (s *Store) DeleteRow(ctx context.Context, sheet string, rowIndex int) error {
	if rowIndex < 1 {
		return fmt.Errorf("row index must be positive, got %d", rowIndex)
	}

	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex - 1),
					EndIndex:   int64(rowIndex),
				},
			},
		}},
	}

	return common.WithRetry(ctx, func() error {
		_, err := s.service.Spreadsheets.
			BatchUpdate(s.config.SpreadsheetID, req).
			Context(ctx).Do()
		if err != nil {
			return mapAPIError(sheet, err)
		}
		return nil
	}, s.retryOpts())
}

// ListSheets returns the titles of all worksheets in the spreadsheet.
func (s *Store) ListSheets(ctx context.Context) ([]string, error) {
	var titles []string
	err := common.WithRetry(ctx, func() error {
		resp, err := s.service.Spreadsheets.
			Get(s.config.SpreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).Do()
		if err != nil {
			return mapAPIError("", err)
		}
		titles = titles[:0]
		for _, sh := range resp.Sheets {
			if sh.Properties != nil {
				titles = append(titles, sh.Properties.Title)
			}
		}
		return nil
	}, s.retryOpts())
	if err != nil {
		return nil, err
	}
	return titles, nil
}

// Categories reads the Settings sheet into the category catalogue.
// Column A is the category name, column B its description; a leading
// "category"/"категория" header row is skipped.
func (s *Store) Categories(ctx context.Context) (model.Catalogue, error) {
	rows, err := s.AllRows(ctx, SettingsSheet)
	if err != nil {
		return nil, err
	}

	var catalogue []model.Category
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		if lower := strings.ToLower(name); lower == "category" || lower == "категория" {
			continue
		}
		description := ""
		if len(row) > 1 {
			description = strings.TrimSpace(row[1])
		}
		catalogue = append(catalogue, model.Category{Name: name, Description: description})
	}

	s.logger.Debug("loaded category catalogue", "count", len(catalogue))
	return catalogue, nil
}

// Prompts reads prompt overrides from the Prompts sheet. A missing sheet is
// not an error; the compiled-in defaults apply.
func (s *Store) Prompts(ctx context.Context) (map[string]string, error) {
	rows, err := s.AllRows(ctx, PromptsSheet)
	if err != nil {
		if errors.Is(err, common.ErrWorksheetNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	prompts := make(map[string]string)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(row[0]))
		if key == "" || key == "key" || key == "ключ" {
			continue
		}
		prompts[key] = row[1]
	}
	return prompts, nil
}

// sheetID resolves a worksheet title to its numeric sheet ID.
func (s *Store) sheetID(ctx context.Context, sheet string) (int64, error) {
	resp, err := s.service.Spreadsheets.
		Get(s.config.SpreadsheetID).
		Fields("sheets.properties").
		Context(ctx).Do()
	if err != nil {
		return 0, mapAPIError(sheet, err)
	}
	for _, sh := range resp.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheet {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet)
}

func rangeRef(sheet, cells string) string {
	return quoteSheet(sheet) + "!" + cells
}

// quoteSheet wraps a worksheet title in single quotes so titles with spaces
// or Cyrillic survive A1-notation parsing.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// mapAPIError converts Sheets API failures for an unknown worksheet into
// common.ErrWorksheetNotFound so callers can branch on it.
func mapAPIError(sheet string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		notFound := apiErr.Code == 404 ||
			(apiErr.Code == 400 && strings.Contains(apiErr.Message, "Unable to parse range"))
		if notFound {
			// Non-retryable so WithRetry surfaces it immediately.
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet),
				Retryable: false,
			}
		}
		if apiErr.Code == 429 {
			return &common.RetryableError{Err: common.ErrRateLimit, Retryable: true}
		}
	}
	return err
}
