package modem_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/wioe5/at"
	"i4.energy/across/wioe5/modem"
)

func newTestEngine(bufferSize int) (*modem.Engine, *modem.TestTransport, *modem.TestClock) {
	clock := modem.NewTestClock(0)
	transport := modem.NewTestTransport(clock)
	engine := modem.NewEngine(transport, modem.EngineConfig{
		BufferSize: bufferSize,
		Clock:      clock,
	})
	return engine, transport, clock
}

func TestEngineExec(t *testing.T) {
	t.Run("Succeeds when the marker arrives", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond(at.CmdAt, "+AT: OK\r\n")

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine.Response() != "+AT: OK\r\n" {
			t.Errorf("unexpected response %q", engine.Response())
		}
		if writes := transport.Writes(); len(writes) != 1 || writes[0] != "AT\r\n" {
			t.Errorf("expected a single verbatim write, got %q", writes)
		}
	})

	t.Run("Times out when nothing arrives", func(t *testing.T) {
		engine, _, clock := newTestEngine(0)

		start := clock.Now()
		err := engine.Exec(at.CmdAt, at.MarkerAlive, 500*time.Millisecond)
		if !errors.Is(err, modem.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got: %v", err)
		}
		if elapsed := clock.Now().Sub(start); elapsed < 500*time.Millisecond {
			t.Errorf("gave up after %v, before the deadline", elapsed)
		}
		if engine.Response() != "" {
			t.Errorf("expected empty response, got %q", engine.Response())
		}
	})

	t.Run("Discards stale input before writing", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Inject("+AT: OK\r\n")

		err := engine.Exec(at.CmdAt, at.MarkerAlive, 200*time.Millisecond)
		if !errors.Is(err, modem.ErrTimeout) {
			t.Fatalf("stale marker was taken as the answer: %v", err)
		}
		if transport.Resets() != 1 {
			t.Errorf("expected one input flush, got %d", transport.Resets())
		}
	})

	t.Run("Detects a marker split across bursts", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond("AT+CMSGHEX=\"00\"\r\n", "+CMSGHEX: Do", modem.Gap, "ne\r\n")

		if err := engine.Exec("AT+CMSGHEX=\"00\"\r\n", at.MarkerDone, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine.Response() != "+CMSGHEX: Done\r\n" {
			t.Errorf("unexpected response %q", engine.Response())
		}
	})

	t.Run("Returns as soon as the marker is seen", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond(at.CmdAt, "+AT: OK\r\n", modem.Gap, "+LATE: data\r\n")

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transport.Pending() == 0 {
			t.Error("expected trailing bytes to stay unread on the link")
		}
		if strings.Contains(engine.Response(), "LATE") {
			t.Errorf("response includes bytes after the marker burst: %q", engine.Response())
		}
	})

	t.Run("Accumulates responses longer than one burst", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		long := strings.Repeat("+LOG: padding line\r\n", 8) + "+AT: OK\r\n"
		transport.Respond(at.CmdAt, long)

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine.Response() != long {
			t.Errorf("expected full response, got %q", engine.Response())
		}
	})

	t.Run("Aborts on overflow", func(t *testing.T) {
		engine, transport, _ := newTestEngine(modem.MinBufferSize)
		transport.Respond(at.CmdAt, strings.Repeat("x", 100))

		err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second)
		if !errors.Is(err, modem.ErrOverflow) {
			t.Fatalf("expected ErrOverflow, got: %v", err)
		}
		if n := len(engine.Response()); n > modem.MinBufferSize-1 {
			t.Errorf("buffer holds %d bytes, capacity is %d", n, modem.MinBufferSize)
		}
	})

	t.Run("Keeps partial response after timeout", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond(at.CmdJoin, "+JOIN: Start\r\n", modem.Gap, "+JOIN: Join failed\r\n")

		err := engine.Exec(at.CmdJoin, at.MarkerJoined, 2*time.Second)
		if !errors.Is(err, modem.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got: %v", err)
		}
		if engine.Response() != "+JOIN: Start\r\n+JOIN: Join failed\r\n" {
			t.Errorf("unexpected partial response %q", engine.Response())
		}
	})

	t.Run("Fire and forget returns after the write", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond(at.CmdAt, "+AT: OK\r\n")
		transport.Respond("AT+RESET\r\n", "+RESET: OK\r\n")

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := engine.Exec("AT+RESET\r\n", "", time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transport.Pending() == 0 {
			t.Error("fire and forget command should not read the response")
		}
		if engine.Response() != "" {
			t.Errorf("previous response kept after fire and forget: %q", engine.Response())
		}
	})

	t.Run("Buffer is reused across transactions", func(t *testing.T) {
		engine, transport, _ := newTestEngine(0)
		transport.Respond(at.CmdAt, "+AT: OK\r\n")
		transport.Respond(at.CmdVersion, "+VER: 4.0.11\r\n")

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := engine.Exec(at.CmdVersion, at.MarkerVersion, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine.Response() != "+VER: 4.0.11\r\n" {
			t.Errorf("previous response leaked into the next one: %q", engine.Response())
		}
	})
}

func TestEngineBufferSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{"Zero selects the default", 0, modem.DefaultBufferSize},
		{"Small sizes are raised to the minimum", 32, modem.MinBufferSize},
		{"Negative sizes are raised to the minimum", -1, modem.MinBufferSize},
		{"Explicit size is kept", 1024, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := newTestEngine(tt.size)
			if engine.BufferSize() != tt.expected {
				t.Errorf("expected buffer size %d, got %d", tt.expected, engine.BufferSize())
			}
		})
	}
}

func TestEngineTransport(t *testing.T) {
	t.Run("Flushes input before writing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).AT().Build()...)

		engine := modem.NewEngine(mockTransport, modem.EngineConfig{Clock: modem.NewTestClock(time.Millisecond)})
		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Propagates write errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		writeError := errors.New("port gone")
		mockTransport := modem.NewMockTransport(ctrl)
		gomock.InOrder(
			mockTransport.EXPECT().ResetInputBuffer().Return(nil),
			mockTransport.EXPECT().Write(gomock.Any()).Return(0, writeError),
		)

		engine := modem.NewEngine(mockTransport, modem.EngineConfig{Clock: modem.NewTestClock(time.Millisecond)})
		err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second)
		if !errors.Is(err, writeError) {
			t.Errorf("expected write error, got: %v", err)
		}
	})

	t.Run("Propagates read errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		gomock.InOrder(
			mockTransport.EXPECT().ResetInputBuffer().Return(nil),
			mockTransport.EXPECT().Write(gomock.Any()).Return(4, nil),
			mockTransport.EXPECT().SetReadTimeout(gomock.Any()).Return(nil),
			mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				return copy(p, "+AT"), io.EOF
			}),
		)

		engine := modem.NewEngine(mockTransport, modem.EngineConfig{Clock: modem.NewTestClock(time.Millisecond)})
		err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second)
		if !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got: %v", err)
		}
		if engine.Response() != "+AT" {
			t.Errorf("expected bytes read before the error to be kept, got %q", engine.Response())
		}
	})

	t.Run("Mirrors traffic to the sink", func(t *testing.T) {
		clock := modem.NewTestClock(0)
		transport := modem.NewTestTransport(clock)
		transport.Respond(at.CmdAt, "+AT: OK\r\n")

		var lines []string
		engine := modem.NewEngine(transport, modem.EngineConfig{
			Clock: clock,
			Sink:  func(line string) { lines = append(lines, line) },
		})

		if err := engine.Exec(at.CmdAt, at.MarkerAlive, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 2 || lines[0] != "> AT\r\n" || lines[1] != "+AT: OK\r\n" {
			t.Errorf("unexpected sink lines %q", lines)
		}
	})
}
