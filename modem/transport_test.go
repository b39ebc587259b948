package modem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestSerialDialer_Dial_EmptyPortName(t *testing.T) {
	dialer := SerialDialer{
		PortName: "",
	}

	ctx := context.Background()
	transport, err := dialer.Dial(ctx)

	if err == nil {
		t.Error("expected error for empty port name")
	}
	if transport != nil {
		t.Error("expected nil transport for empty port name")
	}
	if err.Error() != "wioe5: serial port name is required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSerialDialer_Dial_NilContext(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/ttyUSB0",
	}

	transport, err := dialer.Dial(nil)

	if err == nil {
		t.Error("expected error for nil context")
	}
	if transport != nil {
		t.Error("expected nil transport for nil context")
	}
	if err.Error() != "wioe5: context is nil" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSerialDialer_Dial_ContextCanceled(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent", // Port that should fail to open
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	transport, err := dialer.Dial(ctx)

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport for canceled context")
	}
}

func TestSerialDialer_Dial_WithMode(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent", // This will fail, but we test the path
		Mode: &serial.Mode{
			BaudRate: 115200,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		},
	}

	ctx := context.Background()
	transport, err := dialer.Dial(ctx)

	// Since we're using a non-existent port, expect an error
	if err == nil {
		t.Error("expected error for non-existent port")
	}
	if transport != nil {
		t.Error("expected nil transport for non-existent port")
	}
	// Check that the error mentions the port name
	if err != nil && err.Error() == "" {
		t.Error("expected descriptive error message")
	}
}

func TestSerialDialer_Dial_DefaultMode(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent", // This will fail, but we test the path
		// Mode is nil - should use defaults
	}

	ctx := context.Background()
	transport, err := dialer.Dial(ctx)

	// Since we're using a non-existent port, expect an error
	if err == nil {
		t.Error("expected error for non-existent port")
	}
	if transport != nil {
		t.Error("expected nil transport for non-existent port")
	}
}

// serial.Port must satisfy Transport so SerialDialer can hand it out.
var _ Transport = serial.Port(nil)

func TestTestTransport(t *testing.T) {
	t.Run("Each write consumes one queued response", func(t *testing.T) {
		transport := NewTestTransport(NewTestClock(0))
		transport.Respond("AT\r\n", "first").Respond("AT\r\n", "second")

		buf := make([]byte, 16)
		for _, expected := range []string{"first", "second"} {
			if _, err := transport.Write([]byte("AT\r\n")); err != nil {
				t.Fatalf("unexpected write error: %v", err)
			}
			n, err := transport.Read(buf)
			if err != nil {
				t.Fatalf("unexpected read error: %v", err)
			}
			if string(buf[:n]) != expected {
				t.Errorf("expected %q, got %q", expected, buf[:n])
			}
		}
	})

	t.Run("Reads split chunks larger than the buffer", func(t *testing.T) {
		transport := NewTestTransport(NewTestClock(0))
		transport.Inject("+AT: OK\r\n")

		buf := make([]byte, 4)
		n, _ := transport.Read(buf)
		if string(buf[:n]) != "+AT:" || transport.Pending() != 5 {
			t.Errorf("unexpected partial read %q, %d pending", buf[:n], transport.Pending())
		}
	})

	t.Run("Idle reads advance the clock by the read timeout", func(t *testing.T) {
		clock := NewTestClock(0)
		transport := NewTestTransport(clock)
		if err := transport.SetReadTimeout(2 * time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		start := clock.Now()
		n, err := transport.Read(make([]byte, 4))
		if n != 0 || err != nil {
			t.Errorf("expected empty read, got %d, %v", n, err)
		}
		if elapsed := clock.Now().Sub(start); elapsed != 2*time.Millisecond {
			t.Errorf("expected clock to advance 2ms, got %v", elapsed)
		}
	})

	t.Run("Gap ends a burst", func(t *testing.T) {
		clock := NewTestClock(0)
		transport := NewTestTransport(clock)
		transport.Respond("AT\r\n", "a", Gap, "b")
		transport.Write([]byte("AT\r\n"))

		buf := make([]byte, 4)
		transport.Read(buf)
		start := clock.Now()
		if n, _ := transport.Read(buf); n != 0 {
			t.Errorf("expected the gap to read as idle, got %d bytes", n)
		}
		if elapsed := clock.Now().Sub(start); elapsed != GapDuration {
			t.Errorf("expected clock to advance %v, got %v", GapDuration, elapsed)
		}
	})

	t.Run("ResetInputBuffer drops pending input", func(t *testing.T) {
		transport := NewTestTransport(NewTestClock(0))
		transport.Inject("stale")

		if err := transport.ResetInputBuffer(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transport.Pending() != 0 || transport.Resets() != 1 {
			t.Errorf("expected empty input after flush, %d pending", transport.Pending())
		}
	})

	t.Run("Closed transport fails reads and writes", func(t *testing.T) {
		transport := NewTestTransport(NewTestClock(0))
		if err := transport.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}

		if _, err := transport.Write([]byte("AT\r\n")); err == nil {
			t.Error("expected write error after close")
		}
		if _, err := transport.Read(make([]byte, 4)); err != io.EOF {
			t.Errorf("expected io.EOF after close, got: %v", err)
		}
	})
}

func TestTestDialer(t *testing.T) {
	transport := NewTestTransport(NewTestClock(0))
	dialer := TestDialer{Transport: transport}

	got, err := dialer.Dial(context.Background())
	if err != nil {
		t.Errorf("unexpected dial error: %v", err)
	}
	if got != transport {
		t.Error("expected the configured transport to be returned")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dialer.Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

type dtrTransport struct {
	*TestTransport
	levels []bool
}

func (d *dtrTransport) SetDTR(dtr bool) error {
	d.levels = append(d.levels, dtr)
	return nil
}

func TestResetOnDTR(t *testing.T) {
	clock := NewTestClock(0)
	transport := &dtrTransport{TestTransport: NewTestTransport(clock)}

	config, err := NewConfigBuilder().
		WithDialer(TestDialer{Transport: transport}).
		WithResetOnDTR(true).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := Open(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error from Open(): %v", err)
	}
	defer m.Close()

	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transport.levels) != 3 || transport.levels[0] || !transport.levels[1] || transport.levels[2] {
		t.Errorf("unexpected DTR pulse %v", transport.levels)
	}
}

func TestWriterSink(t *testing.T) {
	clock := NewTestClock(0)
	var buf bytes.Buffer
	sink := WriterSink(&buf, clock)

	clock.Advance(42 * time.Millisecond)
	sink("> AT\r\n")
	sink("+AT: OK")

	expected := "[42] Wio-E5: > AT\r\n[42] Wio-E5: +AT: OK\n"
	if buf.String() != expected {
		t.Errorf("unexpected sink output %q", buf.String())
	}
}
