package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/capturebridge/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device changes, enumerations, skipped devices and dropped relays",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"devices-changed":    events.DevicesChangedEvent{},
		"devices-enumerated": events.DevicesEnumeratedEvent{},
		"device-skipped":     events.DeviceSkippedEvent{},
		"relay-dropped":      events.RelayDroppedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.DevicesChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DevicesEnumeratedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceSkippedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RelayDroppedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// The current list doubles as the connection confirmation.
		if svc := s.options.Devices; svc != nil {
			data := s.devicesData()
			if err := send.Data(events.DevicesEnumeratedEvent{
				Header:  events.NewHeader(),
				Kind:    data.Kind,
				Source:  data.Source,
				Count:   data.Count,
				Devices: data.Devices,
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
