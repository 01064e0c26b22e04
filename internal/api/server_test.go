package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/capturebridge/internal/api/models"
	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/logging"
	"github.com/smazurov/capturebridge/internal/metrics"
	"github.com/smazurov/capturebridge/internal/metrics/exporters"
)

type fakeDevices struct {
	mu      sync.Mutex
	list    []*devices.Device
	reinits int
	err     error
}

func (f *fakeDevices) Kind() devices.Kind { return devices.KindVideo }

func (f *fakeDevices) SourceName() string { return "fake" }

func (f *fakeDevices) Devices() []*devices.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list
}

func (f *fakeDevices) Reinitialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reinits++
	if f.err != nil {
		f.list = nil
		return f.err
	}
	f.list = append(f.list, &devices.Device{
		Name:   fmt.Sprintf("Camera %d", f.reinits),
		Path:   fmt.Sprintf("/dev/video%d", f.reinits),
		Kind:   devices.KindVideo,
		Source: "fake",
	})
	return nil
}

type fakeStats struct{}

func (fakeStats) Stats() metrics.BridgeStats {
	return metrics.BridgeStats{RelaysDelivered: 3, RelaysDropped: 1}
}

func newTestServer(t *testing.T, opts *Options) *httptest.Server {
	t.Helper()
	if opts.Devices == nil {
		opts.Devices = &fakeDevices{list: []*devices.Device{
			{Name: "Integrated Camera", Path: "/dev/video0", Kind: devices.KindVideo, Source: "fake"},
		}}
	}
	ts := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, &Options{AuthUsername: "u", AuthPassword: "p"})

	var health models.HealthData
	if code := getJSON(t, ts, http.MethodGet, "/api/health", &health); code != http.StatusOK {
		t.Fatalf("Expected 200 without auth, got %d", code)
	}
	if health.Status != "ok" {
		t.Errorf("Expected ok, got %s", health.Status)
	}

	var v models.VersionData
	if code := getJSON(t, ts, http.MethodGet, "/api/version", &v); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if v.GoVersion == "" || v.Platform == "" {
		t.Errorf("Expected runtime fields, got %+v", v)
	}
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Bearer x", "", http.StatusUnauthorized},
		{"bad base64", "Basic !!!", "", http.StatusUnauthorized},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:nope")), "", http.StatusUnauthorized},
		{"header", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret")), "", http.StatusOK},
		{"query", "", base64.StdEncoding.EncodeToString([]byte("admin:secret")), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := ts.URL + "/api/devices"
			if tt.query != "" {
				url += "?auth=" + tt.query
			}
			req, _ := http.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header")
			}
		})
	}
}

func TestListAndReinitializeDevices(t *testing.T) {
	svc := &fakeDevices{}
	ts := newTestServer(t, &Options{Devices: svc})

	var list models.DevicesData
	if code := getJSON(t, ts, http.MethodGet, "/api/devices", &list); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if list.Count != 0 || list.Devices == nil {
		t.Errorf("Expected empty non-null list, got %+v", list)
	}
	if list.Kind != "video" || list.Source != "fake" {
		t.Errorf("Unexpected kind/source %s/%s", list.Kind, list.Source)
	}

	var reinit models.DevicesData
	if code := getJSON(t, ts, http.MethodPost, "/api/devices/reinitialize", &reinit); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if reinit.Count != 1 || reinit.Devices[0].Path != "/dev/video1" {
		t.Errorf("Expected one device after reinitialize, got %+v", reinit)
	}
}

func TestReinitializeErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("open: %w", devices.ErrEnumerationUnavailable), http.StatusOK},
		{devices.ErrManagerClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts := newTestServer(t, &Options{Devices: &fakeDevices{err: tt.err}})
			if code := getJSON(t, ts, http.MethodPost, "/api/devices/reinitialize", nil); code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRecentLogs(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logger := logging.GetLogger("api-test")
	for i := range 5 {
		logger.Info("entry", "n", i)
	}

	ts := newTestServer(t, &Options{})

	var logs models.LogsData
	if code := getJSON(t, ts, http.MethodGet, "/api/logs?limit=2", &logs); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if logs.Count != 2 {
		t.Fatalf("Expected 2 entries, got %d", logs.Count)
	}
	if logs.Entries[0].Seq >= logs.Entries[1].Seq {
		t.Errorf("Expected oldest first, got seq %d then %d", logs.Entries[0].Seq, logs.Entries[1].Seq)
	}

	if code := getJSON(t, ts, http.MethodGet, "/api/logs?limit=-1", nil); code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for negative limit, got %d", code)
	}
}

func TestBridgeStatus(t *testing.T) {
	ctx := bridge.NewContext()
	ts := newTestServer(t, &Options{Bridge: ctx, Stats: fakeStats{}})

	var data models.BridgeData
	if code := getJSON(t, ts, http.MethodGet, "/api/bridge", &data); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if data.ID != ctx.ID.String() {
		t.Errorf("Expected id %s, got %s", ctx.ID, data.ID)
	}
	if data.Loaded || data.HotplugRegistered {
		t.Errorf("Expected unloaded bridge, got %+v", data)
	}
	if data.Stats.RelaysDelivered != 3 || data.Stats.RelaysDropped != 1 {
		t.Errorf("Unexpected stats %+v", data.Stats)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	ts := newTestServer(t, &Options{PrometheusHandler: exporters.HTTPHandler()})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "capturebridge_") {
		t.Error("Expected capturebridge metrics in exposition")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &Options{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/devices", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected permissive CORS origin")
	}
}

func readData(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for SSE data")
		return ""
	}
}

func TestEventStream(t *testing.T) {
	bus := events.New()
	ts := newTestServer(t, &Options{EventBus: bus})

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- line
			}
		}
	}()

	if first := readData(t, lines); !strings.Contains(first, "/dev/video0") {
		t.Errorf("Expected current device list first, got %s", first)
	}

	bus.Publish(events.DevicesChangedEvent{Header: events.NewHeader(), Source: "netlink", Kind: "video"})
	if msg := readData(t, lines); !strings.Contains(msg, `"source":"netlink"`) {
		t.Errorf("Expected devices changed event, got %s", msg)
	}
}
