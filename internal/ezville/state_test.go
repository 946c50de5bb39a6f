package ezville

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHomeState_FirstObservationAlwaysPublishes(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hs := NewHomeState(fixedClock(start))

	inst := Instance{Class: ClassLight, Room: 1, Sub: 1}
	if !hs.Apply(inst, "power", "ON") {
		t.Error("first observation of an attribute must always publish")
	}
}

func TestHomeState_Idempotence(t *testing.T) {
	// P3: publishing the same state twice results in exactly one
	// broker publish outside the force-update window.
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	hs := NewHomeState(func() time.Time { return now })

	inst := Instance{Class: ClassLight, Room: 1, Sub: 1}
	if !hs.Apply(inst, "power", "ON") {
		t.Fatal("first Apply should publish")
	}

	// Advance just past the force-update window boundary so the second
	// call is clearly outside it.
	now = start.Add(ForceDuration + time.Second)
	if hs.Apply(inst, "power", "ON") {
		t.Error("repeating an unchanged value outside the force window must not publish")
	}

	if !hs.Apply(inst, "power", "OFF") {
		t.Error("a changed value must always publish")
	}
}

func TestHomeState_ForceUpdateWindowBypassesDedup(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	hs := NewHomeState(func() time.Time { return now })

	inst := Instance{Class: ClassLight, Room: 1, Sub: 1}
	hs.Apply(inst, "power", "ON")

	// Jump to the next force-update window (one full ForcePeriod later,
	// still inside its ForceDuration).
	now = start.Add(ForcePeriod + time.Second)
	if !hs.Apply(inst, "power", "ON") {
		t.Error("repeating the same value inside a force-update window must still publish")
	}

	// Once the window closes, dedup resumes.
	now = start.Add(ForcePeriod + ForceDuration + time.Second)
	if hs.Apply(inst, "power", "ON") {
		t.Error("dedup must resume once the force-update window elapses")
	}
}

func TestHomeState_Snapshot(t *testing.T) {
	hs := NewHomeState(fixedClock(time.Now()))
	inst := Instance{Class: ClassPlug, Room: 2, Sub: 1}

	if _, known := hs.Snapshot(inst, "power"); known {
		t.Error("Snapshot of an unobserved attribute must report known=false")
	}

	hs.Apply(inst, "power", "ON")
	value, known := hs.Snapshot(inst, "power")
	if !known || value != "ON" {
		t.Errorf("Snapshot() = (%q, %v), want (\"ON\", true)", value, known)
	}
}
