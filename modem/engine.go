package modem

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"i4.energy/across/wioe5/at"
)

const (
	// DefaultBufferSize is the response buffer capacity used when none is
	// configured.
	DefaultBufferSize = 512
	// MinBufferSize is the smallest response buffer the module protocol
	// works with.
	MinBufferSize = 64

	// firstByteWindow is how long a burst waits for its first byte.
	firstByteWindow = 20 * time.Millisecond
	// interByteWindow is how long a burst waits after each received byte.
	interByteWindow = 50 * time.Millisecond
	// pollInterval bounds a single transport Read.
	pollInterval = 2 * time.Millisecond
	// burstSize caps the bytes collected by one burst.
	burstSize = 31
)

// EngineConfig configures an Engine. Zero values select defaults.
type EngineConfig struct {
	// BufferSize is the response buffer capacity in bytes. Zero selects
	// DefaultBufferSize and smaller values are raised to MinBufferSize.
	BufferSize int
	Clock      Clock
	Logger     *slog.Logger
	// Sink mirrors commands and received bursts when set.
	Sink LineSink
}

// Engine runs AT command transactions over a Transport: it sends a command,
// collects the reply in a fixed-size buffer and returns once an expected
// marker shows up or the deadline passes.
//
// An Engine is not safe for concurrent use. Only one transaction may be in
// flight at a time and callers sharing an Engine must serialize access.
type Engine struct {
	transport Transport
	clock     Clock
	logger    *slog.Logger
	sink      LineSink

	resp  *at.ResponseBuffer
	burst [burstSize]byte
}

// NewEngine creates an Engine bound to t. The response buffer is allocated
// here and reused by every transaction.
func NewEngine(t Transport, cfg EngineConfig) *Engine {
	switch {
	case cfg.BufferSize == 0:
		cfg.BufferSize = DefaultBufferSize
	case cfg.BufferSize < MinBufferSize:
		cfg.BufferSize = MinBufferSize
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		transport: t,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		sink:      cfg.Sink,
		resp:      at.NewResponseBuffer(cfg.BufferSize),
	}
}

// Exec writes cmd to the module and waits up to timeout for expected to
// appear in the response.
//
// Input already waiting on the transport is discarded before cmd is written.
// An empty expected marker makes Exec return right after the write with an
// empty response. The accumulated response is available through Response
// until the next call, on failure as well as on success.
//
// Exec returns ErrTimeout when the deadline passes, ErrOverflow when the
// response outgrows the buffer, or the transport error that aborted it.
func (e *Engine) Exec(cmd, expected string, timeout time.Duration) error {
	return e.exec([]byte(cmd), expected, timeout)
}

// Response returns the text accumulated by the last transaction.
func (e *Engine) Response() string {
	return e.resp.String()
}

// BufferSize returns the response buffer capacity.
func (e *Engine) BufferSize() int {
	return e.resp.Cap()
}

func (e *Engine) exec(cmd []byte, expected string, timeout time.Duration) error {
	label := strings.TrimSpace(string(cmd))
	e.resp.Reset()

	if err := e.transport.ResetInputBuffer(); err != nil {
		txIOError.Inc()
		return fmt.Errorf("flush input before %q: %w", label, err)
	}

	if _, err := e.transport.Write(cmd); err != nil {
		txIOError.Inc()
		return fmt.Errorf("write command %q: %w", label, err)
	}
	txBytes.Add(len(cmd))
	e.sink.emit("> " + string(cmd))
	e.logger.Debug("command sent", "command", label)

	if expected == "" {
		return nil
	}

	start := e.clock.Now()
	deadline := start.Add(timeout)
	defer func() {
		txDuration.Update(e.clock.Now().Sub(start).Seconds())
	}()

	if err := e.transport.SetReadTimeout(pollInterval); err != nil {
		txIOError.Inc()
		return fmt.Errorf("set read timeout for %q: %w", label, err)
	}

	for {
		chunk, err := e.readBurst()
		if len(chunk) > 0 {
			rxBytes.Add(len(chunk))
			e.sink.emit(string(chunk))

			if err := e.resp.Append(chunk); err != nil {
				txOverflow.Inc()
				e.sink.emit(" !! Buffer overflow")
				e.logger.Warn("response buffer overflow",
					"command", label,
					"buffer_size", e.resp.Cap())
				return fmt.Errorf("command %q: %w", label, err)
			}

			if e.resp.Contains(expected) {
				txOK.Inc()
				return nil
			}
		}
		if err != nil {
			txIOError.Inc()
			return fmt.Errorf("read response to %q: %w", label, err)
		}

		if !e.clock.Now().Before(deadline) {
			break
		}
	}

	txTimeout.Inc()
	e.sink.emit(" !! No response")
	e.logger.Warn("no response before deadline",
		"command", label,
		"expected", expected,
		"timeout", timeout,
		"received", e.resp.Len())
	return fmt.Errorf("command %q: %w", label, ErrTimeout)
}

// readBurst collects bytes until the line has been idle for the current
// window or the burst frame is full. The window starts at firstByteWindow
// and is pushed out by interByteWindow every time bytes arrive.
func (e *Engine) readBurst() ([]byte, error) {
	n := 0
	until := e.clock.Now().Add(firstByteWindow)

	for n < len(e.burst) && e.clock.Now().Before(until) {
		r, err := e.transport.Read(e.burst[n:])
		if r > 0 {
			n += r
			until = e.clock.Now().Add(interByteWindow)
		}
		if err != nil {
			return e.burst[:n], err
		}
	}
	return e.burst[:n], nil
}

// isTransactionFailure reports whether err ended a transaction that reached
// the module, as opposed to a transport level failure.
func isTransactionFailure(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrOverflow)
}
