package modem

import (
	"context"
	"io"
	"sync"
	"time"
)

// TestClock is a manually driven Clock for tests. Now returns the current
// fake time and then advances it by Step, so loops that poll the clock
// always make progress.
type TestClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewTestClock returns a clock starting at an arbitrary fixed instant.
func NewTestClock(step time.Duration) *TestClock {
	return &TestClock{now: time.Unix(1_700_000_000, 0), Step: step}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

func (c *TestClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Gap is a TestTransport chunk that stands for the line going idle for
// GapDuration, which splits the surrounding chunks into separate bursts.
const Gap = ""

// GapDuration is how far a Gap moves the clock.
const GapDuration = 100 * time.Millisecond

// TestTransport is a scripted Transport for tests. Responses are queued per
// command; once a command is written its chunks become readable in order.
// Reads with nothing queued return no data after advancing the clock by the
// configured read timeout, the way a real serial port blocks.
type TestTransport struct {
	mu          sync.Mutex
	clock       *TestClock
	readTimeout time.Duration
	script      map[string][][]string
	pending     [][]byte
	writes      []string
	resets      int
	closed      bool
}

// NewTestTransport creates a new test transport driven by clock.
func NewTestTransport(clock *TestClock) *TestTransport {
	return &TestTransport{
		clock:  clock,
		script: make(map[string][][]string),
	}
}

// Respond queues chunks to be read after cmd is written. Gap entries end a
// burst. Each write of cmd consumes one queued response.
func (t *TestTransport) Respond(cmd string, chunks ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script[cmd] = append(t.script[cmd], chunks)
	return t
}

// Inject makes data readable immediately, as if the module had sent it
// unprompted.
func (t *TestTransport) Inject(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, []byte(data))
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	cmd := string(p)
	t.writes = append(t.writes, cmd)

	if queued := t.script[cmd]; len(queued) > 0 {
		t.script[cmd] = queued[1:]
		for _, chunk := range queued[0] {
			t.pending = append(t.pending, []byte(chunk))
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}

	if len(t.pending) == 0 {
		if t.clock != nil {
			t.clock.Advance(t.readTimeout)
		}
		return 0, nil
	}

	chunk := t.pending[0]
	if len(chunk) == 0 {
		t.pending = t.pending[1:]
		if t.clock != nil {
			t.clock.Advance(GapDuration)
		}
		return 0, nil
	}

	n = copy(p, chunk)
	if n == len(chunk) {
		t.pending = t.pending[1:]
	} else {
		t.pending[0] = chunk[n:]
	}
	return n, nil
}

func (t *TestTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = d
	return nil
}

func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
	t.resets++
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Writes returns every command written so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Resets returns how many times the input buffer was flushed.
func (t *TestTransport) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// Pending returns the number of bytes still waiting to be read.
func (t *TestTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.pending {
		n += len(c)
	}
	return n
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Transport, nil
}
