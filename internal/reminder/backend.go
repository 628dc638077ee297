package reminder

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Backend is the one-shot timer primitive under the Scheduler.
type Backend interface {
	// Schedule runs fn once at at, or as soon as possible when at is not in the future.
	Schedule(at time.Time, name string, fn func()) (uuid.UUID, error)
	// Remove cancels a pending timer. Unknown ids are not an error.
	Remove(id uuid.UUID) error
	Close() error
}

// GocronBackend runs timers as gocron one-time jobs.
type GocronBackend struct {
	s gocron.Scheduler
}

// NewGocronBackend starts a gocron scheduler in loc.
func NewGocronBackend(loc *time.Location) (*GocronBackend, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("reminder: gocron scheduler: %w", err)
	}
	s.Start()
	return &GocronBackend{s: s}, nil
}

func (b *GocronBackend) Schedule(at time.Time, name string, fn func()) (uuid.UUID, error) {
	start := gocron.OneTimeJobStartImmediately()
	if at.After(time.Now()) {
		start = gocron.OneTimeJobStartDateTime(at)
	}
	j, err := b.s.NewJob(gocron.OneTimeJob(start), gocron.NewTask(fn), gocron.WithName(name))
	if errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
		j, err = b.s.NewJob(gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()), gocron.NewTask(fn), gocron.WithName(name))
	}
	if err != nil {
		return uuid.Nil, err
	}
	return j.ID(), nil
}

func (b *GocronBackend) Remove(id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if err := b.s.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}
	return nil
}

func (b *GocronBackend) Close() error {
	return b.s.Shutdown()
}
