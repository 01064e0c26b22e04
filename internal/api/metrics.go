package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/capturebridge/internal/api/models"
)

// registerMetricsRoutes exposes bridge state and counters as JSON. The
// Prometheus exposition lives on /metrics.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-bridge",
		Method:      http.MethodGet,
		Path:        "/api/bridge",
		Summary:     "Bridge Status",
		Description: "Runtime binding, hotplug registration and crossing counters of the bridge",
		Tags:        []string{"bridge"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.BridgeResponse, error) {
		var data models.BridgeData
		if ctx := s.options.Bridge; ctx != nil {
			data.ID = ctx.ID.String()
			data.Loaded = ctx.Loaded()
			if n := ctx.Notifier(); n != nil {
				data.HotplugRegistered = n.Registered()
			}
			if f := ctx.Forwarder(); f != nil {
				data.ForwarderCached = f.Cached()
			}
		}
		if s.options.Stats != nil {
			data.Stats = s.options.Stats.Stats()
		}
		return &models.BridgeResponse{Body: data}, nil
	})
}
