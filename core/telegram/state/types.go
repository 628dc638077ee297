package state

import (
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the chat.
	StateIdle State = "idle"
	// StateAwaitingDate waits for a YYYY-MM-DD date.
	StateAwaitingDate State = "awaiting_date"
	// StateAwaitingTime waits for an HH:MM time on the stored date.
	StateAwaitingTime State = "awaiting_time"
	// StateScheduling is held while the reminder of a completed time step is being armed.
	StateScheduling State = "scheduling"
)

// Job is a reminder that has been scheduled and has neither fired nor been cancelled.
type Job struct {
	ID        uuid.UUID
	ChatID    int64
	FireAt    time.Time
	Text      string
	BackendID uuid.UUID
}

// Session is the per-chat record. Jobs are kept in scheduling order.
type Session struct {
	State       State
	PendingDate *time.Time
	Jobs        []Job
}

// InProgress reports whether a conversation is under way.
func (s *Session) InProgress() bool {
	return s.State != "" && s.State != StateIdle
}

// Reset ends the conversation and drops the collected date. Jobs are untouched.
func (s *Session) Reset() {
	s.State = StateIdle
	s.PendingDate = nil
}

// RemoveJob deletes the job with the given id and reports whether it was present.
func (s *Session) RemoveJob(id uuid.UUID) (Job, bool) {
	for i, j := range s.Jobs {
		if j.ID == id {
			s.Jobs = append(s.Jobs[:i], s.Jobs[i+1:]...)
			return j, true
		}
	}
	return Job{}, false
}

// PopLatest removes and returns the most recently scheduled job.
func (s *Session) PopLatest() (Job, bool) {
	n := len(s.Jobs)
	if n == 0 {
		return Job{}, false
	}
	j := s.Jobs[n-1]
	s.Jobs = s.Jobs[:n-1]
	return j, true
}

// Stats summarizes the registry for diagnostics.
type Stats struct {
	Sessions      int
	Conversations int
	PendingJobs   int
}

// Manager owns the chat sessions and the per-state text handlers.
type Manager interface {
	// Update runs fn with exclusive access to the chat's session, creating it on first use.
	// fn must not call back into the Manager for the same chat.
	Update(chatID int64, fn func(*Session) error) error
	// Snapshot returns a copy of the chat's session.
	Snapshot(chatID int64) Session
	InProgress(chatID int64) bool
	Stats() Stats

	// Handle registers the text handler for a conversation step.
	Handle(st State, h tele.HandlerFunc)
	// ManagerHandler dispatches a text update to the handler of the chat's current step.
	ManagerHandler(c tele.Context) error
}
