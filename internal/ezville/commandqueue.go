package ezville

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
)

// Entry is one queued outbound command: the sealed frame to transmit,
// the ack prefix the decoder will match against, and how many attempts
// have been made so far. done is closed exactly once, by RemoveAck, the
// instant a matching ACK frame is observed (I3); the transmitter polls
// it instead of re-scanning the queue by pointer identity, which would
// otherwise race against an entry it had already popped for sending.
type Entry struct {
	Frame    []byte
	Ack      AckPrefix
	NoAck    bool
	Attempts int

	done     chan struct{}
	doneOnce sync.Once
}

// NewEntry returns a queue entry ready to be pushed, with its
// completion signal initialized.
func NewEntry(frame []byte, ack AckPrefix, noAck bool) *Entry {
	return &Entry{Frame: frame, Ack: ack, NoAck: noAck, done: make(chan struct{})}
}

func (e *Entry) markAcked() {
	e.doneOnce.Do(func() { close(e.done) })
}

// CommandQueue is the ordered FIFO of pending outbound commands. It is
// safe for concurrent use: the command loop peeks the head entry while
// it is in flight, and the decoder removes entries on ack match (O4).
type CommandQueue struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewCommandQueue returns an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Push appends a new entry to the tail of the queue.
func (q *CommandQueue) Push(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
}

// Len reports how many entries are currently queued.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// peekHead returns the head entry without removing it, or nil if the
// queue is empty. The transmitter holds a command at the head across
// its entire ack-wait/retry cycle so a matching ACK can still find and
// remove it; only NoAck discard and retry exhaustion actually dequeue.
func (q *CommandQueue) peekHead() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// removeOne drops e from the queue if still present.
func (q *CommandQueue) removeOne(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// RemoveAck matches an incoming ACK frame prefix against the queue in
// order and removes at most the first matching entry, mirroring the
// protocol's first-match-wins ack semantics (P4). The removed entry's
// completion signal is closed so a transmitter waiting on it wakes
// immediately instead of waiting out the rest of its sleep.
func (q *CommandQueue) RemoveAck(ack AckPrefix) bool {
	q.mu.Lock()
	var matched *Entry
	for i, e := range q.entries {
		if !e.NoAck && e.Ack == ack {
			matched = e
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if matched == nil {
		return false
	}
	matched.markAcked()
	return true
}

// Sender writes a sealed command frame to the active transport
// (direct TCP socket write, or MQTT publish on the gateway send
// topic), repeated CmdCount times by the transmitter.
type Sender interface {
	Send(frame []byte) error
}

// TransmitterConfig holds the tunables the transmitter's retry and
// pacing behaviour depends on.
type TransmitterConfig struct {
	CmdCount      int
	CmdInterval   time.Duration
	CmdRetryCount int
	RandomBackoff bool
}

// Transmitter takes the head entry of a CommandQueue, writes it to the
// gateway, and manages the ack-wait/retry state machine described in
// the command queue design.
type Transmitter struct {
	Sender Sender
	Config TransmitterConfig
	Logger *logging.Logger

	// Sleep and Rand are overridable for deterministic tests; they
	// default to time.Sleep and math/rand in NewTransmitter.
	Sleep func(time.Duration)
	Rand  func() float64
}

// NewTransmitter returns a Transmitter wired to send and cfg, using
// real time.Sleep and math/rand.
func NewTransmitter(send Sender, cfg TransmitterConfig, logger *logging.Logger) *Transmitter {
	return &Transmitter{
		Sender: send,
		Config: cfg,
		Logger: logger,
		Sleep:  time.Sleep,
		Rand:   rand.Float64,
	}
}

// Step runs one peek-transmit-wait-retry cycle against queue. It
// reports whether a command was in flight, so the caller can shrink
// its loop delay to 100µs while a command is outstanding and restore
// it to the configured idle delay otherwise.
func (t *Transmitter) Step(queue *CommandQueue) (inFlight bool) {
	e := queue.peekHead()
	if e == nil {
		return false
	}

	for i := 0; i < t.Config.CmdCount; i++ {
		if err := t.Sender.Send(e.Frame); err != nil {
			t.Logger.Warn("command send failed", "error", err, "attempt", e.Attempts)
		}
	}

	if e.Attempts == 0 {
		t.Sleep(100 * time.Millisecond)
	} else {
		t.Sleep(t.waitDuration())
	}

	if e.NoAck {
		queue.removeOne(e)
		return true
	}

	select {
	case <-e.done:
		// RemoveAck already dequeued it on ack match; nothing left to do.
		return true
	default:
	}

	if e.Attempts >= t.Config.CmdRetryCount {
		queue.removeOne(e)
		t.Logger.Warn("command dropped after retry exhaustion",
			"attempts", e.Attempts, "ack", e.Ack)
		return true
	}

	e.Attempts++
	return true
}

func (t *Transmitter) waitDuration() time.Duration {
	if !t.Config.RandomBackoff {
		return t.Config.CmdInterval
	}
	return time.Duration(t.Rand() * float64(t.Config.CmdInterval))
}
