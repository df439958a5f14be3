package cronjob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRun_Every(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s := Schedule{Kind: ScheduleEvery, EveryMs: 5 * 60 * 1000}

	next, err := s.NextRun(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), next)
}

func TestNextRun_EveryAnchored(t *testing.T) {
	anchor := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	s := Schedule{Kind: ScheduleEvery, EveryMs: 60 * 60 * 1000, AnchorMs: anchor.UnixMilli()}

	next, err := s.NextRun(time.Date(2026, 1, 15, 10, 20, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)), "got %v", next)

	next, err = s.NextRun(anchor.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, next.Equal(anchor))
}

func TestNextRun_EveryInvalid(t *testing.T) {
	_, err := Schedule{Kind: ScheduleEvery}.NextRun(time.Now())
	assert.Error(t, err)
}

func TestNextRun_Cron(t *testing.T) {
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	next, err := Schedule{Kind: ScheduleCron, Expr: "0 9 * * *"}.NextRun(now)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)), "got %v", next)
}

func TestNextRun_CronTz(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) // 08:00 in Shanghai
	next, err := Schedule{Kind: ScheduleCron, Expr: "0 9 * * *", Tz: "Asia/Shanghai"}.NextRun(now)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 1, 15, 9, 0, 0, 0, loc)), "got %v", next)

	_, err = Schedule{Kind: ScheduleCron, Expr: "0 9 * * *", Tz: "Mars/Olympus"}.NextRun(now)
	assert.Error(t, err)
}

func TestNextRun_At(t *testing.T) {
	s := Schedule{Kind: ScheduleAt, At: "2026-02-01T09:00:00Z"}

	next, err := s.NextRun(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)))

	next, err = s.NextRun(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.IsZero(), "past one-shot should not fire again")
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{Kind: ScheduleCron, Expr: "*/5 * * * *"}.Validate())
	assert.Error(t, Schedule{Kind: ScheduleCron, Expr: "bad"}.Validate())
	assert.Error(t, Schedule{Kind: ScheduleAt, At: "tomorrow"}.Validate())
	assert.Error(t, Schedule{Kind: "weekly"}.Validate())
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		consecutiveErr int
		want           time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, 1 * time.Minute},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, 60 * time.Minute},
		{100, 60 * time.Minute}, // capped
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.consecutiveErr), "consecutiveErr=%d", tt.consecutiveErr)
	}
}

func TestWithJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), withJitter(0))
	for i := 0; i < 50; i++ {
		d := withJitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.LessOrEqual(t, d, time.Minute+6*time.Second)
	}
}
