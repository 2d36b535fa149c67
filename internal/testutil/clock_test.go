// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestFakeClock_DefaultsToFixedReference(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Time{})
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClock_Advance(t *testing.T) {
	t.Parallel()

	initial := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(initial)

	clock.Advance(90 * time.Minute)

	if got, want := clock.Now(), initial.Add(90*time.Minute); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClock_NowIsStable(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Time{})
	first := clock.Now()
	time.Sleep(5 * time.Millisecond)
	if got := clock.Now(); !got.Equal(first) {
		t.Errorf("Now() moved without Advance: %v then %v", first, got)
	}
}
