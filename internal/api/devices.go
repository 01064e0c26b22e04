package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/capturebridge/internal/api/models"
	"github.com/smazurov/capturebridge/internal/devices"
)

func (s *Server) devicesData() models.DevicesData {
	svc := s.options.Devices
	infos := devices.Infos(svc.Devices())
	return models.DevicesData{
		Kind:    svc.Kind().String(),
		Source:  svc.SourceName(),
		Devices: infos,
		Count:   len(infos),
	}
}

func (s *Server) registerDeviceRoutes() {
	if s.options.Devices == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List the capture devices found by the last enumeration, in enumeration order",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		return &models.DevicesResponse{Body: s.devicesData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reinitialize-devices",
		Method:      http.MethodPost,
		Path:        "/api/devices/reinitialize",
		Summary:     "Reinitialize Devices",
		Description: "Release every current device and enumerate again",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(_ context.Context, _ *struct{}) (*models.ReinitializeResponse, error) {
		err := s.options.Devices.Reinitialize()
		switch {
		case err == nil, errors.Is(err, devices.ErrEnumerationUnavailable):
			// an unavailable category is an empty list
		case errors.Is(err, devices.ErrManagerClosed):
			return nil, huma.Error503ServiceUnavailable("device manager closed", err)
		default:
			return nil, huma.Error500InternalServerError("reinitialize failed", err)
		}
		return &models.ReinitializeResponse{Body: s.devicesData()}, nil
	})
}
