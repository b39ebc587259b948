package modem

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LineSink receives pre-formatted debug lines: every command written to the
// module and every burst read from it. A nil LineSink discards everything.
type LineSink func(line string)

func (s LineSink) emit(line string) {
	if s != nil {
		s(line)
	}
}

// WriterSink mirrors lines to w with the module's "[ms] Wio-E5: " prefix,
// where ms counts milliseconds since the sink was created.
func WriterSink(w io.Writer, clock Clock) LineSink {
	if clock == nil {
		clock = SystemClock{}
	}
	start := clock.Now()
	return func(line string) {
		ms := clock.Now().Sub(start) / time.Millisecond
		fmt.Fprintf(w, "[%d] Wio-E5: %s", ms, line)
		if !strings.HasSuffix(line, "\n") {
			io.WriteString(w, "\n")
		}
	}
}

// SlogSink forwards lines to logger at debug level.
func SlogSink(logger *slog.Logger) LineSink {
	return func(line string) {
		logger.Debug("serial", "line", strings.TrimRight(line, "\r\n"))
	}
}
