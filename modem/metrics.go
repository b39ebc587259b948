package modem

import (
	"github.com/VictoriaMetrics/metrics"
)

// Transaction outcomes, exported in Prometheus text format through
// metrics.WritePrometheus.
var (
	txOK       = metrics.NewCounter(`wioe5_transactions_total{outcome="ok"}`)
	txTimeout  = metrics.NewCounter(`wioe5_transactions_total{outcome="timeout"}`)
	txOverflow = metrics.NewCounter(`wioe5_transactions_total{outcome="overflow"}`)
	txIOError  = metrics.NewCounter(`wioe5_transactions_total{outcome="io_error"}`)

	txDuration = metrics.NewHistogram(`wioe5_transaction_duration_seconds`)

	rxBytes     = metrics.NewCounter(`wioe5_serial_read_bytes_total`)
	txBytes     = metrics.NewCounter(`wioe5_serial_written_bytes_total`)
	uplinks     = metrics.NewCounter(`wioe5_uplinks_total`)
	downlinks   = metrics.NewCounter(`wioe5_downlinks_total`)
	joinsFailed = metrics.NewCounter(`wioe5_join_failures_total`)
)
