package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvery_Next(t *testing.T) {
	s := Every(15 * time.Minute)
	from := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(15*time.Minute), s.Next(from))
}

func TestDaily_Next(t *testing.T) {
	s := Daily(9, 30)

	t.Run("before the daily time runs today", func(t *testing.T) {
		from := time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("after the daily time runs tomorrow", func(t *testing.T) {
		from := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("exactly at the daily time runs tomorrow", func(t *testing.T) {
		from := time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC), s.Next(from))
	})
}

func TestWeekly_Next(t *testing.T) {
	s := Weekly(time.Monday, 6, 0)

	// 2026-08-23 is a Sunday.
	from := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	next := s.Next(from)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC), next)

	// From Monday after the run time, skips to next week.
	fromMonday := time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC), s.Next(fromMonday))
}

func TestCron_Next(t *testing.T) {
	s := Cron("0 12 * * *") // noon every day

	from := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC), s.Next(from))
}

func TestCron_PanicsOnInvalidExpression(t *testing.T) {
	assert.Panics(t, func() {
		Cron("not a cron expr")
	})
}
