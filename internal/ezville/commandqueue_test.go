package ezville

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func TestCommandQueue_PushPeekOrder(t *testing.T) {
	q := NewCommandQueue()
	e1 := NewEntry([]byte{1}, AckPrefix{}, true)
	e2 := NewEntry([]byte{2}, AckPrefix{}, true)
	q.Push(e1)
	q.Push(e2)

	if got := q.peekHead(); got != e1 {
		t.Errorf("peekHead() = %v, want e1 (FIFO order, O3)", got)
	}
	// peeking must not remove the entry.
	if got := q.peekHead(); got != e1 {
		t.Errorf("second peekHead() = %v, want e1 again", got)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d after peeking, want 2", q.Len())
	}

	q.removeOne(e1)
	if got := q.peekHead(); got != e2 {
		t.Errorf("peekHead() after removing e1 = %v, want e2", got)
	}
}

func TestCommandQueue_RemoveAck_RemovesOnlyFirstMatch(t *testing.T) {
	// P4: a single ACK frame removes at most one command entry, even
	// when two entries share the same ack prefix.
	ack := AckPrefix{0xF7, 0x0E, 0x11, 0xC1}
	q := NewCommandQueue()
	e1 := NewEntry([]byte{1}, ack, false)
	e2 := NewEntry([]byte{2}, ack, false)
	q.Push(e1)
	q.Push(e2)

	if !q.RemoveAck(ack) {
		t.Fatal("RemoveAck() = false, want true")
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d after one ack, want 1", q.Len())
	}
	if q.peekHead() != e2 {
		t.Error("second matching entry should remain queued")
	}
	select {
	case <-e1.done:
	default:
		t.Error("e1's completion signal must be closed once acked (I3)")
	}

	if !q.RemoveAck(ack) {
		t.Fatal("RemoveAck() should still match the second queued entry")
	}
	if q.RemoveAck(ack) {
		t.Error("RemoveAck() matched a third time on an empty queue")
	}
}

func TestCommandQueue_RemoveAck_NoMatch(t *testing.T) {
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{1}, AckPrefix{0xF7, 0x0E, 0x11, 0xC1}, false))

	other := AckPrefix{0xF7, 0x50, 0x11, 0xC3}
	if q.RemoveAck(other) {
		t.Error("RemoveAck() matched an unrelated ack prefix")
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1 (unmatched ack must not remove anything)", q.Len())
	}
}

func TestCommandQueue_RemoveAck_SkipsNoAckEntries(t *testing.T) {
	ack := AckPrefix{0xF7, 0x33, 0x01, 0x81}
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{1}, ack, true))

	if q.RemoveAck(ack) {
		t.Error("RemoveAck() matched a NoAck entry; NoAck entries must never be ack-matched")
	}
}

type fakeSender struct {
	sends [][]byte
	err   error
}

func (f *fakeSender) Send(frame []byte) error {
	f.sends = append(f.sends, frame)
	return f.err
}

func noSleep(time.Duration) {}

func TestTransmitter_Step_BurstsCmdCountTimes(t *testing.T) {
	sender := &fakeSender{}
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{0xAA}, AckPrefix{}, true))

	tr := NewTransmitter(sender, TransmitterConfig{CmdCount: 3}, testLogger())
	tr.Sleep = noSleep

	inFlight := tr.Step(q)
	if !inFlight {
		t.Fatal("Step() reported no command in flight")
	}
	if len(sender.sends) != 3 {
		t.Errorf("sent %d times, want 3 (CmdCount burst)", len(sender.sends))
	}
}

func TestTransmitter_Step_NoAckEntryDiscardedAfterOneRound(t *testing.T) {
	sender := &fakeSender{}
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{0xAA}, AckPrefix{}, true))

	tr := NewTransmitter(sender, TransmitterConfig{CmdCount: 1, CmdRetryCount: 5}, testLogger())
	tr.Sleep = noSleep

	tr.Step(q)
	if q.Len() != 0 {
		t.Errorf("queue length = %d after stepping a NoAck entry, want 0", q.Len())
	}
}

func TestTransmitter_Step_AckDuringSleepRemovesEntry(t *testing.T) {
	// O4: an ACK that arrives while the transmitter is "sleeping" (here,
	// synchronously inside the overridden Sleep hook) still removes the
	// entry, and Step must observe that on the very next check rather
	// than treating it as an unacknowledged attempt.
	ack := AckPrefix{0xF7, 0x0E, 0x11, 0xC1}
	sender := &fakeSender{}
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{0xAA}, ack, false))

	tr := NewTransmitter(sender, TransmitterConfig{CmdCount: 1, CmdRetryCount: 3}, testLogger())
	tr.Sleep = func(time.Duration) {
		q.RemoveAck(ack)
	}

	tr.Step(q)
	if q.Len() != 0 {
		t.Fatalf("queue length = %d after ack-during-sleep, want 0", q.Len())
	}
}

func TestTransmitter_Step_RetriesWithoutAck(t *testing.T) {
	sender := &fakeSender{}
	q := NewCommandQueue()
	entry := NewEntry([]byte{0xAA}, AckPrefix{0xF7, 0x0E, 0x11, 0xC1}, false)
	q.Push(entry)

	tr := NewTransmitter(sender, TransmitterConfig{CmdCount: 1, CmdRetryCount: 3}, testLogger())
	tr.Sleep = noSleep

	tr.Step(q)
	if q.Len() != 1 {
		t.Fatalf("queue length = %d after first unacked attempt, want 1 (still retrying)", q.Len())
	}
	if entry.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", entry.Attempts)
	}
	if q.peekHead() != entry {
		t.Error("the same entry must remain at the head across retries (O3)")
	}
}

func TestTransmitter_Step_DropsAfterRetryExhaustion(t *testing.T) {
	// P5: no command entry is transmitted more than
	// (CmdRetryCount+1)*CmdCount times on the wire.
	ack := AckPrefix{0xF7, 0x0E, 0x11, 0xC1}
	sender := &fakeSender{}
	q := NewCommandQueue()
	q.Push(NewEntry([]byte{0xAA}, ack, false))

	const cmdCount = 2
	const retryCount = 3
	tr := NewTransmitter(sender, TransmitterConfig{CmdCount: cmdCount, CmdRetryCount: retryCount}, testLogger())
	tr.Sleep = noSleep

	for q.Len() > 0 {
		tr.Step(q)
	}

	maxSends := (retryCount + 1) * cmdCount
	if len(sender.sends) > maxSends {
		t.Errorf("sent %d times, want at most %d (P5)", len(sender.sends), maxSends)
	}
	if len(sender.sends) != maxSends {
		t.Errorf("sent %d times, want exactly %d since no ack ever arrived", len(sender.sends), maxSends)
	}
}

func TestTransmitter_WaitDuration_RandomBackoffBounded(t *testing.T) {
	tr := NewTransmitter(&fakeSender{}, TransmitterConfig{
		CmdInterval:   10 * time.Second,
		RandomBackoff: true,
	}, testLogger())

	for _, r := range []float64{0, 0.5, 0.999} {
		tr.Rand = func() float64 { return r }
		d := tr.waitDuration()
		if d < 0 || d > 10*time.Second {
			t.Errorf("waitDuration() with Rand=%v = %v, want within [0, CmdInterval]", r, d)
		}
	}
}

func TestTransmitter_WaitDuration_FixedWithoutRandomBackoff(t *testing.T) {
	tr := NewTransmitter(&fakeSender{}, TransmitterConfig{CmdInterval: 2 * time.Second}, testLogger())
	if d := tr.waitDuration(); d != 2*time.Second {
		t.Errorf("waitDuration() = %v, want CmdInterval unchanged", d)
	}
}
