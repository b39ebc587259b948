package modem

import (
	"context"
	"fmt"

	"i4.energy/across/wioe5/at"
)

// Downlink describes what the network sent back with an uplink.
type Downlink struct {
	// N is the number of payload bytes decoded into the caller's buffer.
	N int
	// Port is the downlink application port, 0 when none was reported.
	Port int
	// RSSI is the latest signal strength. It keeps the previous reading
	// when the module did not report one for this uplink.
	RSSI int
	// RSSIReported is set when this exchange carried an RSSI value.
	RSSIReported bool
}

// SendData sends data as a confirmed hex uplink and decodes any downlink
// payload into rx, writing at most len(rx) bytes.
//
// The payload is rejected with ErrEncodingTooLarge before any I/O when its
// hex form does not fit the command buffer. A device that is not joined
// gets exactly one join attempt; if that fails SendData returns
// ErrNotJoined.
//
// The signal strength, port and payload fields are all optional in the
// module's reply. SendData succeeds as soon as the exchange completes,
// whichever of them were present.
func (m *Modem) SendData(ctx context.Context, data, rx []byte) (Downlink, error) {
	if len(data)*2+at.EnvelopeOverhead > m.config.BufferSize {
		m.logger.Warn("uplink payload too large",
			"size", len(data),
			"max", m.MaxPayload())
		return Downlink{}, fmt.Errorf("%d bytes, max %d: %w", len(data), m.MaxPayload(), ErrEncodingTooLarge)
	}

	if err := m.ready(); err != nil {
		return Downlink{}, err
	}
	if err := ctx.Err(); err != nil {
		return Downlink{}, err
	}

	if !m.joined {
		if err := m.Join(ctx); err != nil {
			return Downlink{}, fmt.Errorf("%w: %w", ErrNotJoined, err)
		}
	}

	m.cmd = append(m.cmd[:0], at.SendHexPrefix...)
	m.cmd = at.AppendHex(m.cmd, data)
	m.cmd = append(m.cmd, at.SendHexSuffix...)

	if err := m.engine.exec(m.cmd, at.MarkerDone, m.config.SendTimeout); err != nil {
		return Downlink{}, fmt.Errorf("send data: %w", err)
	}
	uplinks.Inc()

	return m.scanDownlink(m.engine.Response(), rx), nil
}

// scanDownlink extracts the optional fields of an uplink reply. A missing
// RSSI keeps the previous reading while a missing port or payload reads as
// zero.
func (m *Modem) scanDownlink(resp string, rx []byte) Downlink {
	var d Downlink

	if rssi, ok := at.ParseRSSI(resp); ok {
		m.rssi = rssi
		d.RSSIReported = true
	}
	d.RSSI = m.rssi

	if port, ok := at.ParsePort(resp); ok {
		d.Port = port
	}

	if hex, ok := at.FindPayload(resp); ok && len(rx) > 0 {
		d.N = at.DecodeRun(rx, hex, len(rx))
		if d.N > 0 {
			downlinks.Inc()
		}
	}

	return d
}
