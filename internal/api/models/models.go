package models

import (
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DevicesData struct {
	Kind    string         `json:"kind" example:"video" doc:"Capture category"`
	Source  string         `json:"source" example:"v4l2" doc:"Enumeration backend"`
	Devices []devices.Info `json:"devices" doc:"Capture devices in enumeration order"`
	Count   int            `json:"count" example:"2" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DevicesData
}

type ReinitializeResponse struct {
	Body DevicesData
}

// Log models
type LogsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"10000" default:"100" doc:"Most recent entries to return; 0 returns the whole buffer"`
}

type LogsData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                    `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Bridge models
type BridgeData struct {
	ID                string              `json:"id" example:"5f1d7c6e-3b9e-4c55-9a51-1c0e1d8f2a10" doc:"Bridge context identifier"`
	Loaded            bool                `json:"loaded" example:"true" doc:"Whether a managed runtime is bound"`
	HotplugRegistered bool                `json:"hotplug_registered" example:"true" doc:"Whether the device change watcher is registered"`
	ForwarderCached   bool                `json:"forwarder_cached" example:"false" doc:"Whether the diagnostic method resolution is cached"`
	Stats             metrics.BridgeStats `json:"stats" doc:"Crossing counters since start"`
}

type BridgeResponse struct {
	Body BridgeData
}
