package modem

import (
	"fmt"
	"log/slog"
	"time"
)

// Band selects the regional LoRaWAN channel plan.
type Band string

const (
	BandEU868 Band = "EU868"
	BandUS915 Band = "US915"
)

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	if c.BufferSize != 0 && c.BufferSize < MinBufferSize {
		return fmt.Errorf("buffer size %d below minimum %d: %w", c.BufferSize, MinBufferSize, ErrInvalidArgument)
	}
	switch c.Band {
	case "", BandEU868, BandUS915:
	default:
		return fmt.Errorf("unsupported band %q: %w", c.Band, ErrInvalidArgument)
	}
	return nil
}

type Config struct {
	Dialer Dialer
	Band   Band
	DevEUI string
	AppEUI string
	AppKey string

	// BufferSize is the capacity of the response and command buffers.
	BufferSize int

	ProbeAttempts  int
	ProbeDelay     time.Duration
	ProbeTimeout   time.Duration
	CommandTimeout time.Duration
	VersionTimeout time.Duration
	JoinTimeout    time.Duration
	SendTimeout    time.Duration
	InitTimeout    time.Duration

	// ResetLine drives the module reset pin. When nil and ResetOnDTR is set,
	// the DTR output of the serial port is used instead.
	ResetLine  ResetLine
	ResetOnDTR bool

	Clock  Clock
	Logger *slog.Logger
	Sink   LineSink
}

func (c *Config) setDefaults() {
	if c.Band == "" {
		c.Band = BandEU868
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ProbeAttempts == 0 {
		c.ProbeAttempts = 10
	}
	if c.ProbeDelay == 0 {
		c.ProbeDelay = 100 * time.Millisecond
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 500 * time.Millisecond
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = time.Second
	}
	if c.VersionTimeout == 0 {
		c.VersionTimeout = 5 * time.Second
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = 12 * time.Second
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = 8 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConfigBuilder assembles a validated Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithBand(band Band) *ConfigBuilder {
	b.config.Band = band
	return b
}

// WithCredentials sets the OTAA identifiers written to the module during
// Begin. Empty values leave the module's stored value untouched.
func (b *ConfigBuilder) WithCredentials(devEUI, appEUI, appKey string) *ConfigBuilder {
	b.config.DevEUI = devEUI
	b.config.AppEUI = appEUI
	b.config.AppKey = appKey
	return b
}

func (b *ConfigBuilder) WithBufferSize(size int) *ConfigBuilder {
	b.config.BufferSize = size
	return b
}

func (b *ConfigBuilder) WithProbe(attempts int, delay time.Duration) *ConfigBuilder {
	b.config.ProbeAttempts = attempts
	b.config.ProbeDelay = delay
	return b
}

func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.JoinTimeout = d
	return b
}

func (b *ConfigBuilder) WithSendTimeout(d time.Duration) *ConfigBuilder {
	b.config.SendTimeout = d
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithResetLine(l ResetLine) *ConfigBuilder {
	b.config.ResetLine = l
	return b
}

func (b *ConfigBuilder) WithResetOnDTR(enabled bool) *ConfigBuilder {
	b.config.ResetOnDTR = enabled
	return b
}

func (b *ConfigBuilder) WithClock(c Clock) *ConfigBuilder {
	b.config.Clock = c
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithSink(s LineSink) *ConfigBuilder {
	b.config.Sink = s
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
