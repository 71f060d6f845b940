package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardTimeSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := NewStandardTime(time.UTC)
	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, time.UTC, clock.Now().Location())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	require.Error(t, err)
}

func TestFakeTime(t *testing.T) {
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeTime(start)

	var seen []time.Time
	clock.OnSleep(func(now time.Time) { seen = append(seen, now) })

	require.NoError(t, clock.Sleep(context.Background(), 3*time.Second))
	require.NoError(t, clock.Sleep(context.Background(), time.Second))
	clock.Advance(time.Minute)

	require.Equal(t, start.Add(time.Minute+4*time.Second), clock.Now())
	require.Equal(t, []time.Duration{3 * time.Second, time.Second}, clock.Sleeps())
	require.Equal(t, []time.Time{start.Add(3 * time.Second), start.Add(4 * time.Second)}, seen)
}

func TestValidateCronSpec(t *testing.T) {
	require.NoError(t, ValidateCronSpec("*/5 * * * *"))
	require.NoError(t, ValidateCronSpec("@hourly"))
	require.Error(t, ValidateCronSpec("every five minutes"))
}
