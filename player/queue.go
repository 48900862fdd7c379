package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrHalted is returned by Acquire once the queue stops admitting frames
var ErrHalted = errors.New("player: frame queue halted")

// SlotState is the life cycle of a frame queue slot
type SlotState uint32

// Slot states, in the order a slot moves through them
const (
	SlotEmpty     SlotState = iota
	SlotFilling             // Being decoded into
	SlotReady               // Queued for display
	SlotDisplayed           // Copied to the display, still on screen
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotFilling:
		return "filling"
	case SlotReady:
		return "ready"
	case SlotDisplayed:
		return "displayed"
	}
	return "unknown"
}

// Display receives decoded frames. Draw is called from the tick and must
// only copy pix, which is not valid after it returns.
type Display interface {
	Draw(pix []byte)
}

// Slot is one frame buffer in the queue
type Slot struct {
	Pix []byte

	redraw bool
	state  atomic.Uint32
}

// State returns the slot's current state
func (s *Slot) State() SlotState {
	return SlotState(s.state.Load())
}

// Queue is a ring of frame buffers filled by a single producer, the main
// loop, and drained by a single consumer, the display tick.
//
// head counts frames admitted and tail counts frames displayed. Only the
// producer stores head and only the tick stores tail, so neither side takes
// a lock; the atomic store of either counter publishes the slot contents
// written before it. The producer may have at most depth-1 frames outstanding
// so it never writes into the slot the display is still showing.
type Queue struct {
	slots   []Slot
	display Display

	head atomic.Uint64
	tail atomic.Uint64

	running atomic.Bool
	halted  atomic.Bool
	ended   atomic.Bool

	ticks     atomic.Uint64
	draws     atomic.Uint64
	underruns atomic.Uint64

	// Tick to producer wakeup, never blocks the sender
	space    chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewQueue returns a queue of depth slots of size bytes each, drawing to d
func NewQueue(depth, size int, d Display) *Queue {
	q := &Queue{
		slots:   make([]Slot, depth),
		display: d,
		space:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for i := range q.slots {
		q.slots[i].Pix = make([]byte, size)
	}
	return q
}

// Depth returns the number of slots
func (q *Queue) Depth() int {
	return len(q.slots)
}

// Slot returns slot i
func (q *Queue) Slot(i int) *Slot {
	return &q.slots[i]
}

func (q *Queue) slot(n uint64) *Slot {
	return &q.slots[n%uint64(len(q.slots))]
}

// Start lets the tick drain the queue
func (q *Queue) Start() {
	q.running.Store(true)
}

// Outstanding returns the number of frames admitted but not yet displayed
func (q *Queue) Outstanding() int {
	return int(q.head.Load() - q.tail.Load())
}

// Displayed returns the number of frames the tick has moved past
func (q *Queue) Displayed() uint64 {
	return q.tail.Load()
}

// Draws returns the number of frames copied to the display
func (q *Queue) Draws() uint64 {
	return q.draws.Load()
}

// Underruns returns the number of ticks that found the queue empty between
// the first frame being admitted and the end of the stream
func (q *Queue) Underruns() uint64 {
	return q.underruns.Load()
}

func (q *Queue) admissible() bool {
	return q.head.Load()-q.tail.Load() < uint64(len(q.slots)-1)
}

// Acquire waits for the next free slot and marks it as filling. It returns
// ErrHalted once the queue is halted.
func (q *Queue) Acquire(ctx context.Context) (*Slot, error) {
	for {
		if q.halted.Load() {
			return nil, ErrHalted
		}
		if q.admissible() {
			break
		}
		select {
		case <-q.space:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s := q.slot(q.head.Load())
	s.state.Store(uint32(SlotFilling))

	return s, nil
}

// Commit queues the slot returned by Acquire. A slot that doesn't need
// redrawing still takes its turn on screen, leaving the previous frame up.
func (q *Queue) Commit(redraw bool) {
	h := q.head.Load()
	s := q.slot(h)
	s.redraw = redraw
	s.state.Store(uint32(SlotReady))
	q.head.Store(h + 1)
}

// Halt stops admitting frames. Frames already queued are still displayed.
func (q *Queue) Halt(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()

	if s := q.slot(q.head.Load()); s.State() == SlotFilling {
		s.state.Store(uint32(SlotEmpty))
	}

	q.halted.Store(true)
}

// Halted reports whether Halt has been called
func (q *Queue) Halted() bool {
	return q.halted.Load()
}

// Err returns the error passed to Halt
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// End marks the end of the stream. Once drained the tick holds the last
// frame.
func (q *Queue) End() {
	q.ended.Store(true)
}

// Done is closed once the queue has drained after End or Halt
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) finished() bool {
	return q.ended.Load() || q.halted.Load()
}

// Tick is the display refresh. It never blocks; it shows the next queued
// frame, if any, and frees the slot it replaces.
func (q *Queue) Tick() {
	if !q.running.Load() {
		return
	}
	q.ticks.Add(1)

	t, h := q.tail.Load(), q.head.Load()
	if t == h {
		switch {
		case q.finished():
			q.doneOnce.Do(func() { close(q.done) })
		case h > 0:
			q.underruns.Add(1)
		}
		return
	}

	s := q.slot(t)
	if s.redraw {
		q.display.Draw(s.Pix)
		q.draws.Add(1)
	}
	s.state.Store(uint32(SlotDisplayed))

	if t > 0 {
		q.slot(t - 1).state.Store(uint32(SlotEmpty))
	}

	q.tail.Store(t + 1)

	select {
	case q.space <- struct{}{}:
	default:
	}

	if t+1 == q.head.Load() && q.finished() {
		q.doneOnce.Do(func() { close(q.done) })
	}
}
