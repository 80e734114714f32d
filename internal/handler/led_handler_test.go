package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"led-relay/internal/config"
	"led-relay/internal/discovery"
	"led-relay/internal/service"
	"led-relay/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	status     service.Status
	sendErr    error
	connectErr error
	response   string
	readOK     bool

	sent     []string
	timeouts []time.Duration
}

func (g *fakeGateway) Status() service.Status { return g.status }

func (g *fakeGateway) SendCommand(cmd string) error {
	g.sent = append(g.sent, cmd)
	return g.sendErr
}

func (g *fakeGateway) Reconnect() error { return g.connectErr }

func (g *fakeGateway) ReadResponse(timeout time.Duration) (string, bool) {
	g.timeouts = append(g.timeouts, timeout)
	return g.response, g.readOK
}

type fakePorts struct {
	ports []discovery.PortInfo
	err   error
}

func (p *fakePorts) ListPorts() ([]discovery.PortInfo, error) { return p.ports, p.err }

func newLEDRouter(gw *fakeGateway, ports *fakePorts) *gin.Engine {
	router := gin.New()
	h := NewLEDHandler(gw, ports, time.Second, zap.NewNop())
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: body %q is not JSON: %v", method, path, w.Body.String(), err)
	}
	return w, decoded
}

func TestSendCommandHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		sendErr    error
		wantCode   int
		wantStatus string
		wantSent   int
	}{
		{"success", `{"command":"a"}`, nil, http.StatusOK, "success", 1},
		{"invalid command", `{"command":"z"}`, fmt.Errorf("%w: %q", service.ErrInvalidCommand, "z"), http.StatusBadRequest, "error", 1},
		{"missing command", `{}`, nil, http.StatusBadRequest, "error", 0},
		{"empty command", `{"command":""}`, nil, http.StatusBadRequest, "error", 0},
		{"malformed body", `{"command":`, nil, http.StatusBadRequest, "error", 0},
		{"device unavailable", `{"command":"a"}`, service.ErrDeviceUnavailable, http.StatusInternalServerError, "error", 1},
		{"send failed", `{"command":"a"}`, service.ErrSendFailed, http.StatusInternalServerError, "error", 1},
		{"unexpected error", `{"command":"a"}`, errors.New("boom"), http.StatusInternalServerError, "error", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{sendErr: tt.sendErr}
			w, body := doJSON(t, newLEDRouter(gw, &fakePorts{}), http.MethodPost, "/api/led/command", tt.body)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if len(gw.sent) != tt.wantSent {
				t.Errorf("gateway received %d commands, want %d", len(gw.sent), tt.wantSent)
			}
		})
	}
}

func TestSendCommandHandlerMessage(t *testing.T) {
	gw := &fakeGateway{}
	_, body := doJSON(t, newLEDRouter(gw, &fakePorts{}), http.MethodPost, "/api/led/command", `{"command":"x"}`)

	if body["message"] != "Command sent: x" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGetStatusHandler(t *testing.T) {
	connected := &fakeGateway{status: service.Status{Connected: true, Address: "/dev/ttyACM0"}}
	w, body := doJSON(t, newLEDRouter(connected, &fakePorts{}), http.MethodGet, "/api/led/status", "")
	if w.Code != http.StatusOK || body["status"] != "connected" || body["port"] != "/dev/ttyACM0" {
		t.Errorf("connected status = %d %v", w.Code, body)
	}

	disconnected := &fakeGateway{}
	w, body = doJSON(t, newLEDRouter(disconnected, &fakePorts{}), http.MethodGet, "/api/led/status", "")
	if w.Code != http.StatusOK || body["status"] != "disconnected" {
		t.Errorf("disconnected status = %d %v", w.Code, body)
	}
	if _, ok := body["port"]; ok {
		t.Error("port reported while disconnected")
	}
}

func TestConnectHandler(t *testing.T) {
	ok := &fakeGateway{status: service.Status{Connected: true, Address: "/dev/ttyACM0"}}
	w, body := doJSON(t, newLEDRouter(ok, &fakePorts{}), http.MethodPost, "/api/led/connect", "")
	if w.Code != http.StatusOK || body["status"] != "success" {
		t.Errorf("connect = %d %v", w.Code, body)
	}

	failing := &fakeGateway{connectErr: service.ErrDeviceUnavailable}
	w, body = doJSON(t, newLEDRouter(failing, &fakePorts{}), http.MethodPost, "/api/led/connect", "")
	if w.Code != http.StatusInternalServerError || body["status"] != "error" {
		t.Errorf("failed connect = %d %v", w.Code, body)
	}
}

func TestReadResponseHandler(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		readOK      bool
		wantCode    int
		wantTimeout time.Duration
	}{
		{"default timeout", "", true, http.StatusOK, time.Second},
		{"explicit timeout", "?timeout=250ms", true, http.StatusOK, 250 * time.Millisecond},
		{"bad timeout", "?timeout=soon", true, http.StatusBadRequest, 0},
		{"timeout too long", "?timeout=1m", true, http.StatusBadRequest, 0},
		{"not connected", "", false, http.StatusServiceUnavailable, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{response: "A:ON", readOK: tt.readOK}
			w, body := doJSON(t, newLEDRouter(gw, &fakePorts{}), http.MethodGet, "/api/led/response"+tt.query, "")

			if w.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d (%v)", w.Code, tt.wantCode, body)
			}
			if tt.wantTimeout == 0 {
				if len(gw.timeouts) != 0 {
					t.Error("device read despite invalid timeout")
				}
				return
			}
			if len(gw.timeouts) != 1 || gw.timeouts[0] != tt.wantTimeout {
				t.Errorf("read timeouts = %v, want [%v]", gw.timeouts, tt.wantTimeout)
			}
			if tt.wantCode == http.StatusOK && body["response"] != "A:ON" {
				t.Errorf("response = %v", body["response"])
			}
		})
	}
}

func TestListPortsHandler(t *testing.T) {
	ports := &fakePorts{ports: []discovery.PortInfo{{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"}}}
	w, body := doJSON(t, newLEDRouter(&fakeGateway{}, ports), http.MethodGet, "/api/led/ports", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v", body["data"])
	}

	failing := &fakePorts{err: errors.New("enumeration failed")}
	w, _ = doJSON(t, newLEDRouter(&fakeGateway{}, failing), http.MethodGet, "/api/led/ports", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	cfg := &config.Config{
		App:    config.AppConfig{Name: "led-relay", Version: "1.0.0"},
		Device: config.DeviceConfig{Address: "/dev/ttyACM0"},
	}

	tests := []struct {
		name       string
		status     service.Status
		wantHealth string
		wantReady  int
	}{
		{"connected", service.Status{Connected: true, Address: "/dev/ttyACM0"}, "healthy", http.StatusOK},
		{"disconnected", service.Status{}, "degraded", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			NewHealthHandler(&fakeGateway{status: tt.status}, nil, cfg, zap.NewNop()).RegisterRoutes(router.Group(""))

			w, body := doJSON(t, router, http.MethodGet, "/health", "")
			if w.Code != http.StatusOK || body["status"] != tt.wantHealth {
				t.Errorf("/health = %d %v", w.Code, body["status"])
			}

			w, _ = doJSON(t, router, http.MethodGet, "/ready", "")
			if w.Code != tt.wantReady {
				t.Errorf("/ready = %d, want %d", w.Code, tt.wantReady)
			}

			w, _ = doJSON(t, router, http.MethodGet, "/live", "")
			if w.Code != http.StatusOK {
				t.Errorf("/live = %d", w.Code)
			}
		})
	}
}

func TestRequestIDInEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(utils.RequestIDKey, "req-42")
		c.Next()
	})
	NewLEDHandler(&fakeGateway{}, &fakePorts{}, time.Second, zap.NewNop()).RegisterRoutes(router.Group("/api"))

	_, body := doJSON(t, router, http.MethodGet, "/api/led/status", "")
	if body["request_id"] != "req-42" {
		t.Errorf("request_id = %v", body["request_id"])
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}
