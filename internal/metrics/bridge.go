// Package metrics provides Prometheus metrics for bridge crossings and
// device enumeration.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/capturebridge/internal/bridge"
)

const namespace = "capturebridge"

var (
	bridgeAttaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "attaches_total",
		Help:      "Runtime attachments by mode (owned or preexisting)",
	}, []string{"mode"})

	bridgeAttachFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "attach_failures_total",
		Help:      "Crossings dropped because no runtime environment was available",
	})

	bridgeRelays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "relays_total",
		Help:      "Capture buffers relayed to the managed side by result",
	}, []string{"result"})

	bridgeRelayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "relay_bytes_total",
		Help:      "Bytes delivered to managed callbacks",
	})

	bridgeNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "hotplug_notifications_total",
		Help:      "Device change notifications by result",
	}, []string{"result"})

	bridgeForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "forwarded_messages_total",
		Help:      "Diagnostic messages forwarded to the managed logger by result",
	}, []string{"result"})
)

func result(ok bool) string {
	if ok {
		return "delivered"
	}
	return "dropped"
}

// BridgeStats is a point-in-time copy of the bridge counters.
type BridgeStats struct {
	OwnedAttaches       uint64 `json:"owned_attaches" doc:"Attachments that attached the thread"`
	PreexistingAttaches uint64 `json:"preexisting_attaches" doc:"Attachments on already attached threads"`
	AttachFailures      uint64 `json:"attach_failures" doc:"Crossings without a runtime environment"`
	RelaysDelivered     uint64 `json:"relays_delivered" doc:"Buffers delivered to managed callbacks"`
	RelaysDropped       uint64 `json:"relays_dropped" doc:"Buffers dropped"`
	RelayBytes          uint64 `json:"relay_bytes" doc:"Bytes delivered"`
	Notifications       uint64 `json:"notifications" doc:"Device change notifications delivered"`
	NotificationsFailed uint64 `json:"notifications_failed" doc:"Device change notifications dropped"`
	Forwarded           uint64 `json:"forwarded" doc:"Diagnostic messages forwarded"`
	ForwardFailed       uint64 `json:"forward_failed" doc:"Diagnostic messages dropped"`
}

// BridgeObserver records crossings in Prometheus and in a local snapshot.
type BridgeObserver struct {
	owned, preexisting, attachFailed atomic.Uint64
	delivered, dropped, bytes        atomic.Uint64
	notified, notifyFailed           atomic.Uint64
	forwarded, forwardFailed         atomic.Uint64
}

var _ bridge.Observer = (*BridgeObserver)(nil)

// NewBridgeObserver creates an observer for one bridge context.
func NewBridgeObserver() *BridgeObserver {
	return &BridgeObserver{}
}

func (o *BridgeObserver) Attached(owned bool) {
	if owned {
		o.owned.Add(1)
		bridgeAttaches.WithLabelValues("owned").Inc()
		return
	}
	o.preexisting.Add(1)
	bridgeAttaches.WithLabelValues("preexisting").Inc()
}

func (o *BridgeObserver) AttachFailed(error) {
	o.attachFailed.Add(1)
	bridgeAttachFailures.Inc()
}

func (o *BridgeObserver) Relayed(delivered bool, length int) {
	bridgeRelays.WithLabelValues(result(delivered)).Inc()
	if !delivered {
		o.dropped.Add(1)
		return
	}
	o.delivered.Add(1)
	if length > 0 {
		o.bytes.Add(uint64(length))
		bridgeRelayBytes.Add(float64(length))
	}
}

func (o *BridgeObserver) Notified(delivered bool) {
	bridgeNotifications.WithLabelValues(result(delivered)).Inc()
	if delivered {
		o.notified.Add(1)
	} else {
		o.notifyFailed.Add(1)
	}
}

func (o *BridgeObserver) Forwarded(delivered bool) {
	bridgeForwarded.WithLabelValues(result(delivered)).Inc()
	if delivered {
		o.forwarded.Add(1)
	} else {
		o.forwardFailed.Add(1)
	}
}

// Stats returns the counters recorded by this observer.
func (o *BridgeObserver) Stats() BridgeStats {
	return BridgeStats{
		OwnedAttaches:       o.owned.Load(),
		PreexistingAttaches: o.preexisting.Load(),
		AttachFailures:      o.attachFailed.Load(),
		RelaysDelivered:     o.delivered.Load(),
		RelaysDropped:       o.dropped.Load(),
		RelayBytes:          o.bytes.Load(),
		Notifications:       o.notified.Load(),
		NotificationsFailed: o.notifyFailed.Load(),
		Forwarded:           o.forwarded.Load(),
		ForwardFailed:       o.forwardFailed.Load(),
	}
}
