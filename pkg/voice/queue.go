package voice

import "sync/atomic"

// CommandKind discriminates a queued voice Command.
type CommandKind int

const (
	CmdNoteOn CommandKind = iota
	CmdNoteOff
	CmdControl
	CmdBeat
	CmdSetAudible
)

// Command is one entry in the SPSC ring buffer between the event-bus
// goroutine (producer) and the audio callback (consumer), per spec.md §5/§9:
// the audio thread must never block on the MIDI thread, so note-on/off/cc/
// beat cross this wait-free boundary instead of a mutex.
type Command struct {
	Kind      CommandKind
	Note      int
	Velocity  int
	ControlID int
	Value     float64
	Audible   bool
}

// ringSize must be a power of two; 256 comfortably outpaces any plausible
// per-buffer-quantum command rate.
const ringSize = 256

// Queue is a fixed-capacity single-producer single-consumer ring buffer of
// Command. Enqueue is called from the bus/coordinator goroutine; Drain is
// called from the audio callback. Neither side blocks or allocates.
type Queue struct {
	buf        [ringSize]Command
	head, tail uint64 // head: next write index (producer-owned); tail: next read index (consumer-owned)
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue { return &Queue{} }

// Enqueue appends cmd. It returns false (and drops cmd) if the ring is full
// rather than blocking the producer.
func (q *Queue) Enqueue(cmd Command) bool {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head-tail >= ringSize {
		return false
	}
	q.buf[head%ringSize] = cmd
	atomic.StoreUint64(&q.head, head+1)
	return true
}

// Drain appends every pending Command to out (reusing its backing array)
// and returns the result. Called from the audio callback; never blocks.
func (q *Queue) Drain(out []Command) []Command {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	for tail < head {
		out = append(out, q.buf[tail%ringSize])
		tail++
	}
	atomic.StoreUint64(&q.tail, tail)
	return out
}
