package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/capturebridge/internal/devices"
)

var (
	devicesPresent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "present",
		Help:      "Capture devices in the current list",
	}, []string{"kind", "source"})

	devicesEnumerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "enumerations_total",
		Help:      "Completed enumeration passes",
	}, []string{"kind", "source"})

	devicesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "skipped_total",
		Help:      "Candidates left out of enumeration by reason",
	}, []string{"kind", "reason"})
)

// DeviceObserver records enumeration outcomes for one backend.
type DeviceObserver struct {
	source string
}

var _ devices.Observer = (*DeviceObserver)(nil)

// NewDeviceObserver labels its metrics with source.
func NewDeviceObserver(source string) *DeviceObserver {
	return &DeviceObserver{source: source}
}

func (o *DeviceObserver) Enumerated(kind devices.Kind, devs []*devices.Device) {
	devicesPresent.WithLabelValues(kind.String(), o.source).Set(float64(len(devs)))
	devicesEnumerations.WithLabelValues(kind.String(), o.source).Inc()
}

func (o *DeviceObserver) DeviceSkipped(err *devices.SkipError) {
	devicesSkipped.WithLabelValues(err.Kind.String(), string(err.Reason)).Inc()
}
