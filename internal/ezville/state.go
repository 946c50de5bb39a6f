package ezville

import (
	"sync"
	"time"
)

// ForcePeriod is the interval between force-update windows: every
// FORCE_PERIOD seconds, dedup is bypassed for ForceDuration so that
// Home Assistant's state is fully resynced even if nothing changed.
const (
	ForcePeriod   = 300 * time.Second
	ForceDuration = 3 * time.Second
)

// attrKey addresses one published attribute of one device instance.
type attrKey struct {
	Instance
	Attribute string
}

// HomeState is the bridge's single piece of shared mutable state: the
// last-published value of every device attribute, guarded by a mutex
// since the receiver, command and state loops all touch it.
//
// There is no persistence across restarts: on startup every value is
// unknown and the first frame seen for each instance publishes
// unconditionally.
type HomeState struct {
	mu      sync.RWMutex
	values  map[attrKey]string
	started time.Time
	now     func() time.Time
}

// NewHomeState returns an empty HomeState. started anchors the
// force-update window schedule; pass time.Now in production and a
// fixed clock in tests.
func NewHomeState(now func() time.Time) *HomeState {
	return &HomeState{
		values:  make(map[attrKey]string),
		started: now(),
		now:     now,
	}
}

// InForceWindow reports whether the current instant falls inside a
// force-update window: the ForceDuration immediately following every
// ForcePeriod boundary since startup.
func (h *HomeState) InForceWindow() bool {
	elapsed := h.now().Sub(h.started)
	if elapsed < 0 {
		return false
	}
	sinceBoundary := elapsed % ForcePeriod
	return sinceBoundary < ForceDuration
}

// Apply records value for key and reports whether it should be
// published: either the value changed, or the caller is inside a
// force-update window and the value already matched.
func (h *HomeState) Apply(inst Instance, attribute, value string) (publish bool) {
	key := attrKey{Instance: inst, Attribute: attribute}

	h.mu.Lock()
	defer h.mu.Unlock()

	prev, known := h.values[key]
	h.values[key] = value

	if !known || prev != value {
		return true
	}
	return h.InForceWindow()
}

// Snapshot returns the last-known value of one attribute and whether
// it has ever been recorded.
func (h *HomeState) Snapshot(inst Instance, attribute string) (value string, known bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	value, known = h.values[attrKey{Instance: inst, Attribute: attribute}]
	return value, known
}
