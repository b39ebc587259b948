package modem

import (
	"errors"

	"i4.energy/across/wioe5/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if initialization failed or if the Dialer returned no
	// transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrNoModule is returned when the radio never answers the liveness
	// probe during Begin.
	ErrNoModule = errors.New("no Wio-E5 module found")

	// ErrTimeout is returned when the expected marker does not show up in the
	// response before the transaction deadline.
	//
	// The partial response stays available through Response for diagnostics,
	// but none of its fields should be trusted.
	ErrTimeout = errors.New("no response before deadline")

	// ErrOverflow is returned when the response outgrows the engine buffer.
	// The transaction is aborted as soon as this happens.
	ErrOverflow = at.ErrOverflow

	// ErrEncodingTooLarge is returned by SendData when the hex form of the
	// payload plus the command envelope cannot fit the command buffer. No
	// bytes are written to the transport in that case.
	ErrEncodingTooLarge = errors.New("payload too large for command buffer")

	// ErrNotJoined is returned by SendData when the device is not associated
	// with the network and the join attempt failed.
	ErrNotJoined = errors.New("not joined to the network")

	// ErrInvalidArgument is returned for out of range data rates and ports.
	ErrInvalidArgument = errors.New("invalid argument")
)
