package modem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/wioe5/at"
)

// Modem represents a Wio-E5 LoRaWAN module driven through AT commands.
//
// It owns the transport, a single transaction Engine and the device state
// learned from the module: whether it joined the network, the latest RSSI
// reading and the firmware version. A Modem is not safe for concurrent use;
// callers sharing one must serialize access.
type Modem struct {
	// transport provides the physical connection to the module
	transport Transport
	// config contains the modem configuration settings
	config Config
	// engine runs every command/response exchange
	engine *Engine
	// resetLine drives the module reset pin, nil when not wired
	resetLine ResetLine
	// cmd is the reusable buffer uplink commands are built in
	cmd []byte

	logger *slog.Logger
	clock  Clock

	closed  bool
	joined  bool
	rssi    int
	version string
}

// dtrSetter is implemented by serial ports whose DTR output can be wired
// to the module reset pin.
type dtrSetter interface {
	SetDTR(dtr bool) error
}

// New creates a new Modem with the given configuration. It opens the
// transport through the configured Dialer and runs Begin.
//
// Returns an error if the transport connection or module initialization
// fails. A failed join does not fail New; SendData joins on demand.
func New(ctx context.Context, config Config) (*Modem, error) {
	m, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	initCtx := ctx
	if m.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, m.config.InitTimeout)
		defer cancel()
	}

	if err := m.Begin(initCtx); err != nil {
		m.transport.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// Open dials the transport and prepares a Modem without talking to the
// module. Begin must be called before data can be sent.
func Open(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		resetLine: config.ResetLine,
		cmd:       make([]byte, 0, config.BufferSize),
		logger:    config.Logger,
		clock:     config.Clock,
		engine: NewEngine(transport, EngineConfig{
			BufferSize: config.BufferSize,
			Clock:      config.Clock,
			Logger:     config.Logger,
			Sink:       config.Sink,
		}),
	}

	if m.resetLine == nil && config.ResetOnDTR {
		if d, ok := transport.(dtrSetter); ok {
			m.resetLine = ResetLineFunc(d.SetDTR)
		}
	}

	return m, nil
}

// Close releases the transport. After calling Close the modem cannot be
// reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// Begin resets the module and runs the setup sequence: liveness probe,
// firmware version, band, OTAA credentials, mode, class and finally a join
// attempt.
//
// Only the probe has to succeed. A setup command the module does not
// acknowledge is logged and skipped; a transport error ends Begin.
func (m *Modem) Begin(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.joined = false
	m.rssi = 0
	m.version = ""

	if err := m.Reset(ctx); err != nil {
		return fmt.Errorf("reset module: %w", err)
	}

	if err := m.probe(ctx); err != nil {
		return err
	}

	m.readVersion()

	bandCmd, bandMarker := at.CmdBandEU868, at.MarkerBandEU868
	if m.config.Band == BandUS915 {
		bandCmd, bandMarker = at.CmdBandUS915, at.MarkerBandUS915
	}

	steps := []struct {
		name, cmd, marker string
	}{
		{"select band", bandCmd, bandMarker},
		{"set DevEUI", credential(at.FmtDevEUI, m.config.DevEUI), at.MarkerDevEUI},
		{"set AppEUI", credential(at.FmtAppEUI, m.config.AppEUI), at.MarkerAppEUI},
		{"set AppKey", credential(at.FmtAppKey, m.config.AppKey), at.MarkerAppKey},
		{"set OTAA mode", at.CmdModeOTAA, at.MarkerMode},
		{"set class A", at.CmdClassA, at.MarkerClass},
	}

	for _, step := range steps {
		if step.cmd == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.engine.Exec(step.cmd, step.marker, m.config.CommandTimeout)
		switch {
		case err == nil:
		case isTransactionFailure(err):
			m.logger.Warn("setup step not acknowledged", "step", step.name, "error", err)
		default:
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err := m.Join(ctx); err != nil {
		m.logger.Warn("initial join failed", "error", err)
	}

	return nil
}

// Reset pulses the module reset line. Without a reset line it does nothing.
func (m *Modem) Reset(ctx context.Context) error {
	if m.resetLine == nil {
		m.logger.Debug("no reset line configured, skipping hard reset")
		return nil
	}

	for _, high := range []bool{false, true, false} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.resetLine.SetReset(high); err != nil {
			return err
		}
		m.clock.Sleep(500 * time.Millisecond)
	}
	return nil
}

// Join runs the OTAA join procedure and records the outcome.
func (m *Modem) Join(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.engine.Exec(at.CmdJoin, at.MarkerJoined, m.config.JoinTimeout)
	m.joined = err == nil
	if err != nil {
		joinsFailed.Inc()
		return fmt.Errorf("join: %w", err)
	}

	m.logger.Info("joined network")
	return nil
}

// SetDataRate selects LoRaWAN data rate dr, 0 to 15.
func (m *Modem) SetDataRate(ctx context.Context, dr uint8) error {
	if dr > 15 {
		return fmt.Errorf("data rate %d: %w", dr, ErrInvalidArgument)
	}
	return m.simple(ctx, fmt.Sprintf(at.FmtDataRate, dr), at.MarkerDataRate)
}

// SetPort selects the application port used by later uplinks. Port 0 is
// reserved for MAC commands and rejected.
func (m *Modem) SetPort(ctx context.Context, port uint8) error {
	if port == 0 {
		return fmt.Errorf("port %d: %w", port, ErrInvalidArgument)
	}
	return m.simple(ctx, fmt.Sprintf(at.FmtPort, port), at.MarkerPort)
}

// Exec runs a raw command and returns the accumulated response.
func (m *Modem) Exec(ctx context.Context, cmd, expected string, timeout time.Duration) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = m.config.CommandTimeout
	}
	err := m.engine.Exec(cmd, expected, timeout)
	return m.engine.Response(), err
}

// Joined reports whether the last join attempt succeeded.
func (m *Modem) Joined() bool { return m.joined }

// RSSI returns the latest signal strength reported by the module.
func (m *Modem) RSSI() int { return m.rssi }

// Version returns the firmware version read during Begin.
func (m *Modem) Version() string { return m.version }

// MaxPayload returns the largest uplink payload SendData accepts.
func (m *Modem) MaxPayload() int {
	return (m.config.BufferSize - at.EnvelopeOverhead) / 2
}

func (m *Modem) ready() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.transport == nil || m.engine == nil {
		return ErrNotInitialized
	}
	return nil
}

func (m *Modem) simple(ctx context.Context, cmd, marker string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.engine.Exec(cmd, marker, m.config.CommandTimeout)
}

// probe sends AT until the module answers. Timeouts are retried; transport
// errors end the probe immediately.
func (m *Modem) probe(ctx context.Context) error {
	for attempt := 1; attempt <= m.config.ProbeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("module not responding: %w", err)
		}

		err := m.engine.Exec(at.CmdAt, at.MarkerAlive, m.config.ProbeTimeout)
		if err == nil {
			return nil
		}
		if !isTransactionFailure(err) {
			return fmt.Errorf("module not responding: %w", err)
		}

		m.logger.Debug("probe unanswered", "attempt", attempt)
		if attempt < m.config.ProbeAttempts {
			m.clock.Sleep(m.config.ProbeDelay)
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrNoModule, m.config.ProbeAttempts)
}

// readVersion stores the firmware version. A module that does not report
// one is still usable, so failures are only logged.
func (m *Modem) readVersion() {
	if err := m.engine.Exec(at.CmdVersion, at.MarkerVersion, m.config.VersionTimeout); err != nil {
		m.logger.Warn("read firmware version", "error", err)
		return
	}
	m.version = at.ParseVersion(m.engine.Response())
	m.logger.Info("module found", "version", m.version)
}

func credential(format, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(format, value)
}
