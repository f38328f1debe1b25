// Package session holds the per-conversation state machine for suspended
// intakes. Every conversation owns exactly one Session, persisted between
// updates so different conversations proceed fully in parallel.
package session

import (
	"context"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// State names the point where a conversation is suspended.
type State string

const (
	// StateIdle means no intake is in flight.
	StateIdle State = "idle"
	// StateWaitingRequired means the active intake is missing mandatory fields.
	StateWaitingRequired State = "waiting_required"
	// StateWaitingDuplicateConfirm means the active intake collided with an
	// existing row and awaits an add-anyway/discard decision.
	StateWaitingDuplicateConfirm State = "waiting_duplicate_confirm"
	// StateWaitingCategoryPick means automatic routing failed and the user
	// must pick a category manually.
	StateWaitingCategoryPick State = "waiting_category_pick"
	// StateWaitingDeletePick means delete candidates were presented and the
	// user must pick one.
	StateWaitingDeletePick State = "waiting_delete_pick"
	// StateWaitingNoteConfirm means a long utterance was structured into a
	// note and awaits a save/discard decision.
	StateWaitingNoteConfirm State = "waiting_note_confirm"
)

// Intake is the suspended context of one item: everything needed to resume
// filling, duplicate-checking and committing its row.
type Intake struct {
	Category         string   `json:"category"`
	Transcript       string   `json:"transcript"`
	Today            string   `json:"today"`
	DuplicatePreview string   `json:"duplicate_preview,omitempty"`
	Headers          []string `json:"headers"`
	Row              []string `json:"row"`
	MissingIndices   []int    `json:"missing_indices,omitempty"`
}

// Session is the full conversation state. Exactly one intake is active at a
// time; Queue holds the remaining items of a multi-item utterance in FIFO
// order and advances only once the active intake resolves.
type Session struct {
	UpdatedAt  time.Time               `json:"updated_at"`
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	Note       string                  `json:"note,omitempty"`
	NoteDate   string                  `json:"note_date,omitempty"`
	Active     *Intake                 `json:"active,omitempty"`
	Queue      []Intake                `json:"queue,omitempty"`
	Results    []string                `json:"results,omitempty"`
	Categories []string                `json:"categories,omitempty"`
	Candidates []model.DeleteCandidate `json:"candidates,omitempty"`
}

// New returns an idle session for the given conversation id.
func New(id string) *Session {
	return &Session{ID: id, State: StateIdle}
}

// Reset clears all pending context, returning the session to idle.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Active = nil
	s.Queue = nil
	s.Results = nil
	s.Categories = nil
	s.Candidates = nil
	s.Note = ""
	s.NoteDate = ""
}

// PopQueue removes and returns the next queued intake, or nil when the
// queue is exhausted.
func (s *Session) PopQueue() *Intake {
	if len(s.Queue) == 0 {
		return nil
	}
	next := s.Queue[0]
	s.Queue = s.Queue[1:]
	return &next
}

// Store persists sessions between conversation updates.
type Store interface {
	// Load returns the session for id, creating an idle one if absent.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}
