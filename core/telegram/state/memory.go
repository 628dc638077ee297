package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/remindbot/core/logger"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type entry struct {
	mu      sync.Mutex
	session Session
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager constructs the in-process Manager. Sessions live for the lifetime of
// the process and are not persisted.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*entry),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

func (m *memoryManager) lookup(chatID int64) *entry {
	m.mu.RLock()
	e, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sessions[chatID]; !ok {
		e = &entry{session: Session{State: StateIdle}}
		m.sessions[chatID] = e
	}
	return e
}

func (m *memoryManager) Update(chatID int64, fn func(*Session) error) error {
	e := m.lookup(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.session)
}

func (m *memoryManager) Snapshot(chatID int64) Session {
	m.mu.RLock()
	e, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if !ok {
		return Session{State: StateIdle}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySession(e.session)
}

func (m *memoryManager) InProgress(chatID int64) bool {
	s := m.Snapshot(chatID)
	return s.InProgress()
}

func (m *memoryManager) Stats() Stats {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	st := Stats{Sessions: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		if e.session.InProgress() {
			st.Conversations++
		}
		st.PendingJobs += len(e.session.Jobs)
		e.mu.Unlock()
	}
	return st
}

func (m *memoryManager) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

func (m *memoryManager) ManagerHandler(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	current := m.Snapshot(chat.ID).State
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.dispatch",
		slog.String("status", "ok"),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return handler(c)
}

func copySession(s Session) Session {
	out := Session{State: s.State}
	if s.PendingDate != nil {
		d := *s.PendingDate
		out.PendingDate = &d
	}
	if len(s.Jobs) > 0 {
		out.Jobs = append([]Job(nil), s.Jobs...)
	}
	return out
}
