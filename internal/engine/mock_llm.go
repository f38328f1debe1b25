package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// MockChat is a scripted ChatModel for tests. JSONFunc, when set, answers
// every ChatJSON call; otherwise responses pop off JSONQueue in order.
type MockChat struct {
	JSONFunc  func(systemPrompt, userPrompt string) (json.RawMessage, error)
	JSONQueue []json.RawMessage
	JSONErr   error
	TextReply string
	TextErr   error

	mu    sync.Mutex
	calls []MockChatCall
}

// MockChatCall records one completion request.
type MockChatCall struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	JSON         bool
}

func (m *MockChat) ChatJSON(_ context.Context, systemPrompt, userPrompt, modelName string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockChatCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Model: modelName, JSON: true})

	if m.JSONErr != nil {
		return nil, m.JSONErr
	}
	if m.JSONFunc != nil {
		return m.JSONFunc(systemPrompt, userPrompt)
	}
	if len(m.JSONQueue) == 0 {
		return nil, errors.New("mock chat: no scripted response")
	}
	resp := m.JSONQueue[0]
	m.JSONQueue = m.JSONQueue[1:]
	return resp, nil
}

func (m *MockChat) ChatText(_ context.Context, systemPrompt, userPrompt, modelName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockChatCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Model: modelName})
	return m.TextReply, m.TextErr
}

// Calls returns all recorded requests.
func (m *MockChat) Calls() []MockChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockChatCall(nil), m.calls...)
}

// MockAnswerer is a canned ask-path collaborator.
type MockAnswerer struct {
	Response  string
	Err       error
	Questions []string
}

func (m *MockAnswerer) Answer(_ context.Context, question, _ string) (string, error) {
	m.Questions = append(m.Questions, question)
	return m.Response, m.Err
}

// MockSettings pins the model name and timezone for tests.
type MockSettings struct {
	Model string
	Loc   *time.Location
}

func (m *MockSettings) ModelName() string {
	if m.Model == "" {
		return "gpt-4o"
	}
	return m.Model
}

func (m *MockSettings) Location() *time.Location {
	if m.Loc == nil {
		return time.UTC
	}
	return m.Loc
}
