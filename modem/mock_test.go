package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/wioe5/at"
	"i4.energy/across/wioe5/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Command expects cmd to be written after an input flush and answers it
// with resp. Once resp is drained every further read finds an idle line.
func (b *MockSequenceBuilder) Command(cmd, resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().ResetInputBuffer().Return(nil),
		b.transport.EXPECT().Write([]byte(cmd)).Return(len(cmd), nil),
		b.transport.EXPECT().SetReadTimeout(gomock.Any()).Return(nil),
	)

	if resp == "" {
		b.calls = append(b.calls,
			b.transport.EXPECT().Read(gomock.Any()).Return(0, nil).AnyTimes(),
		)
		return b
	}

	rest := resp
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			n := copy(p, rest)
			rest = rest[n:]
			return n, nil
		}).MinTimes(1),
	)
	return b
}

// Silent expects cmd to be written and never answered.
func (b *MockSequenceBuilder) Silent(cmd string) *MockSequenceBuilder {
	return b.Command(cmd, "")
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Command(at.CmdAt, "+AT: OK\r\n")
}

func (b *MockSequenceBuilder) Version() *MockSequenceBuilder {
	return b.Command(at.CmdVersion, "+VER: 4.0.11\r\n")
}

func (b *MockSequenceBuilder) BandEU868() *MockSequenceBuilder {
	return b.Command(at.CmdBandEU868, "+DR: EU868\r\n")
}

func (b *MockSequenceBuilder) ModeOTAA() *MockSequenceBuilder {
	return b.Command(at.CmdModeOTAA, "+MODE: LWOTAA\r\n")
}

func (b *MockSequenceBuilder) ClassA() *MockSequenceBuilder {
	return b.Command(at.CmdClassA, "+CLASS: A\r\n")
}

func (b *MockSequenceBuilder) Join() *MockSequenceBuilder {
	return b.Command(at.CmdJoin, "+JOIN: Start\r\n+JOIN: NORMAL\r\n+JOIN: Network joined\r\n+JOIN: NetID 000013 DevAddr 26:01:5F:66\r\n+JOIN: Done\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls returns the expectations for a Begin run with default
// configuration that ends joined to the network.
func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		AT().
		Version().
		BandEU868().
		ModeOTAA().
		ClassA().
		Join().
		Build()
}
