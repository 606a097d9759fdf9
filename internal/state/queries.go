package state

import (
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
)

// Now returns the current time on the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// Elapsed returns how long the current session has been running.
func (s *Store) Elapsed() time.Duration {
	start, ok := s.Get(FieldSessionStart).(time.Time)
	if !ok {
		return 0
	}
	return s.now().Sub(start)
}

// ElapsedMinutes returns the elapsed session time in minutes.
func (s *Store) ElapsedMinutes() float64 {
	return s.Elapsed().Minutes()
}

// ExpectedStage derives the stage the haunting should have reached
// from elapsed session time alone.
func (s *Store) ExpectedStage() spirit.Stage {
	return spirit.ExpectedStage(s.Elapsed())
}

// IsLocalNight reports whether local time is in the haunting hours,
// 22:00 through 04:59.
func (s *Store) IsLocalNight() bool {
	h := s.now().Hour()
	return h >= 22 || h < 5
}

// IsHauntedDate reports whether today is one of the dates the entity
// considers its own: October 31st, or any Friday the 13th.
func (s *Store) IsHauntedDate() bool {
	now := s.now()
	if now.Month() == time.October && now.Day() == 31 {
		return true
	}
	return now.Weekday() == time.Friday && now.Day() == 13
}
