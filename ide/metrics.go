package ide

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts driver traffic. A nil *Metrics records nothing.
type Metrics struct {
	SectorsRead    prometheus.Counter
	SectorsWritten prometheus.Counter
	Failures       *prometheus.CounterVec
}

// NewMetrics creates the driver counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SectorsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gofat32",
			Subsystem: "ide",
			Name:      "sectors_read_total",
			Help:      "Sectors transferred from the drive.",
		}),
		SectorsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gofat32",
			Subsystem: "ide",
			Name:      "sectors_written_total",
			Help:      "Sectors transferred to the drive and flushed.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gofat32",
			Subsystem: "ide",
			Name:      "failures_total",
			Help:      "Failed sector commands by cause.",
		}, []string{"cause"}),
	}
	reg.MustRegister(m.SectorsRead, m.SectorsWritten, m.Failures)
	return m
}

func (m *Metrics) read() {
	if m != nil {
		m.SectorsRead.Inc()
	}
}

func (m *Metrics) written() {
	if m != nil {
		m.SectorsWritten.Inc()
	}
}

func (m *Metrics) failed(err error) {
	if m != nil {
		m.Failures.WithLabelValues(cause(err)).Inc()
	}
}

// cause names the failure for logs and metric labels.
func cause(err error) string {
	switch {
	case errors.Is(err, ErrBusyTimeout):
		return "busy_timeout"
	case errors.Is(err, ErrDataTimeout):
		return "data_timeout"
	case errors.Is(err, ErrFlush):
		return "flush"
	case errors.Is(err, ErrDeviceFault):
		return "device_fault"
	case errors.Is(err, ErrDeviceError):
		return "device_error"
	default:
		return "other"
	}
}
