package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a
// Wio-E5 module.
//
// A Transport is assumed to be already connected and ready for use. Besides
// plain reads and writes the engine needs to bound how long a Read may block
// and to discard input that arrived before a command was sent. serial.Port
// satisfies this interface directly.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long Read blocks. A Read that times out
	// returns 0 bytes and a nil error.
	SetReadTimeout(t time.Duration) error

	// ResetInputBuffer discards any unread input.
	ResetInputBuffer() error
}

// Dialer opens a Transport to a Wio-E5 module.
//
// Dialer abstracts how the connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// ResetLine drives the reset input of the module.
type ResetLine interface {
	SetReset(high bool) error
}

// ResetLineFunc adapts a plain function to ResetLine.
type ResetLineFunc func(high bool) error

func (f ResetLineFunc) SetReset(high bool) error { return f(high) }

// SerialDialer opens a Wio-E5 module over a serial port using
// go.bug.st/serial. The module talks 9600 baud 8N1 out of the box.
type SerialDialer struct {
	PortName string
	BaudRate int
	// Mode overrides BaudRate and the default frame format when set.
	Mode *serial.Mode
}

// Dial opens the configured serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("wioe5: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("wioe5: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = 9600
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}
