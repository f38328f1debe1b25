package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// MockStore is an in-memory TabularStore for tests. Sheets hold the header
// row at index 0, matching the remote layout.
type MockStore struct {
	Sheets     map[string][][]string
	Catalogue  model.Catalogue
	PromptMap  map[string]string
	AppendErr  map[string]error
	SheetOrder []string

	mu      sync.Mutex
	appends []AppendCall
	deletes []DeleteCall
}

// AppendCall records one AppendRow invocation.
type AppendCall struct {
	Sheet string
	Row   []string
}

// DeleteCall records one DeleteRow invocation.
type DeleteCall struct {
	Sheet    string
	RowIndex int
}

// NewMockStore builds an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		Sheets:    make(map[string][][]string),
		PromptMap: make(map[string]string),
		AppendErr: make(map[string]error),
	}
}

// AddSheet registers a sheet with its header row and initial data rows.
func (m *MockStore) AddSheet(name string, headers []string, rows ...[]string) {
	data := [][]string{headers}
	data = append(data, rows...)
	m.Sheets[name] = data
	m.SheetOrder = append(m.SheetOrder, name)
}

func (m *MockStore) Categories(_ context.Context) (model.Catalogue, error) {
	return m.Catalogue, nil
}

func (m *MockStore) Prompts(_ context.Context) (map[string]string, error) {
	return m.PromptMap, nil
}

func (m *MockStore) Headers(_ context.Context, sheet string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.Sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), rows[0]...), nil
}

func (m *MockStore) AllRows(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.Sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (m *MockStore) AppendRow(_ context.Context, sheet string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AppendErr[sheet]; err != nil {
		return err
	}
	if _, ok := m.Sheets[sheet]; !ok {
		return fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet)
	}
	m.Sheets[sheet] = append(m.Sheets[sheet], append([]string(nil), row...))
	m.appends = append(m.appends, AppendCall{Sheet: sheet, Row: append([]string(nil), row...)})
	return nil
}

func (m *MockStore) DeleteRow(_ context.Context, sheet string, rowIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.Sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrWorksheetNotFound, sheet)
	}
	if rowIndex < 1 || rowIndex > len(rows) {
		return fmt.Errorf("row index %d out of range for %s", rowIndex, sheet)
	}
	m.Sheets[sheet] = append(rows[:rowIndex-1], rows[rowIndex:]...)
	m.deletes = append(m.deletes, DeleteCall{Sheet: sheet, RowIndex: rowIndex})
	return nil
}

func (m *MockStore) ListSheets(_ context.Context) ([]string, error) {
	return append([]string(nil), m.SheetOrder...), nil
}

// Appends returns all recorded AppendRow calls.
func (m *MockStore) Appends() []AppendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AppendCall(nil), m.appends...)
}

// AppendsTo returns the rows appended to one sheet.
func (m *MockStore) AppendsTo(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]string
	for _, call := range m.appends {
		if call.Sheet == sheet {
			out = append(out, call.Row)
		}
	}
	return out
}

// Deletes returns all recorded DeleteRow calls.
func (m *MockStore) Deletes() []DeleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeleteCall(nil), m.deletes...)
}
