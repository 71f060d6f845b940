package chrono

import (
	"context"
	"sync"
	"time"
)

// FakeTime is a TimeAPI whose clock only moves when something sleeps on it
// or it is advanced explicitly. Sleeping never blocks.
type FakeTime struct {
	mutex   sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

func NewFakeTime(start time.Time) *FakeTime {
	return &FakeTime{now: start}
}

// OnSleep registers a callback invoked after every sleep with the new time.
// If the callback cancels the sleeping context, Sleep returns its error.
func (f *FakeTime) OnSleep(callback func(now time.Time)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.onSleep = callback
}

func (f *FakeTime) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *FakeTime) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
}

func (f *FakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mutex.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	now := f.now
	callback := f.onSleep
	f.mutex.Unlock()

	if callback != nil {
		callback(now)
	}
	// a callback may cancel ctx to simulate a shutdown arriving mid sleep
	return ctx.Err()
}

// Sleeps returns every duration slept so far.
func (f *FakeTime) Sleeps() []time.Duration {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func (f *FakeTime) Location() *time.Location {
	return f.now.Location()
}
