package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"led-relay/internal/device"
	"led-relay/internal/discovery"
	"led-relay/internal/protocol/mockport"
)

func noSleep(time.Duration) {}

type fakeFinder struct {
	port string
	err  error
	got  []string
}

func (f *fakeFinder) FindPort(preferred string) (string, error) {
	f.got = append(f.got, preferred)
	return f.port, f.err
}

type harness struct {
	dev     *mockport.Device
	service *CommandService
	logs    *observer.ObservedLogs

	mu      sync.Mutex
	checked []string
	sleeps  []time.Duration
	built   []device.Config
}

func testSettings() Settings {
	return Settings{
		Address:       "/dev/mock0",
		BaudRate:      9600,
		Alphabet:      []string{"a", "b", "c", "x"},
		ProbeCommand:  "c",
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
		ProbeDelay:    500 * time.Millisecond,
	}
}

// newHarness wires a CommandService to a simulated device at /dev/mock0.
// checkErr is returned by the address pre-check.
func newHarness(t *testing.T, settings Settings, checkErr error, opts ...Option) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	h := &harness{dev: mockport.NewDevice(), logs: logs}

	factory := func(cfg device.Config) Connection {
		h.mu.Lock()
		h.built = append(h.built, cfg)
		h.mu.Unlock()
		return device.NewManager(cfg, logger,
			device.WithOpener(h.dev.Opener()),
			device.WithSleep(noSleep),
		)
	}

	base := []Option{
		WithSleep(func(d time.Duration) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sleeps = append(h.sleeps, d)
		}),
		WithAddressChecker(func(address string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.checked = append(h.checked, address)
			return checkErr
		}),
	}

	h.service = NewCommandService(settings, factory, logger, append(base, opts...)...)
	return h
}

func (h *harness) resetSleeps() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sleeps = nil
}

func (h *harness) sleepCalls() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

func TestAlphabet(t *testing.T) {
	a := NewAlphabet([]string{"x", "a", "b"})

	for _, cmd := range []string{"a", "b", "x"} {
		if !a.Contains(cmd) {
			t.Errorf("Contains(%q) = false", cmd)
		}
	}
	for _, cmd := range []string{"", "z", "ab", "A"} {
		if a.Contains(cmd) {
			t.Errorf("Contains(%q) = true", cmd)
		}
	}
	if got := fmt.Sprint(a.Commands()); got != "[a b x]" {
		t.Errorf("Commands() = %s", got)
	}
}

func TestInitialize(t *testing.T) {
	h := newHarness(t, testSettings(), nil)

	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if got := h.dev.Written(); got != "c" {
		t.Errorf("probe wrote %q, want %q", got, "c")
	}
	if got := h.sleepCalls(); len(got) != 1 || got[0] != 500*time.Millisecond {
		t.Errorf("sleeps = %v, want [500ms probe delay]", got)
	}
	if st := h.service.Status(); !st.Connected || st.Address != "/dev/mock0" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestProbeFailureDoesNotFailInitialize(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	h.dev.FailNextWrites = 1

	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if h.logs.FilterMessage("Probe command failed").Len() != 1 {
		t.Error("probe failure was not logged")
	}
}

func TestSendCommandInvalid(t *testing.T) {
	h := newHarness(t, testSettings(), nil)

	for _, cmd := range []string{"", "z", "ab", "aa", "A"} {
		err := h.service.SendCommand(cmd)
		if !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("SendCommand(%q) error = %v, want ErrInvalidCommand", cmd, err)
		}
	}

	if h.dev.Touches() != 0 {
		t.Errorf("invalid commands touched the device %d times", h.dev.Touches())
	}
	if len(h.checked) != 0 {
		t.Error("invalid commands triggered re-initialization")
	}
}

func TestSendCommandNoDevice(t *testing.T) {
	tests := []struct {
		name     string
		checkErr error
		openErr  error
	}{
		{"address missing", discovery.ErrAddressNotFound, nil},
		{"permission denied", discovery.ErrPermissionDenied, nil},
		{"open fails", nil, errors.New("device busy")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testSettings(), tt.checkErr)
			h.dev.OpenErr = tt.openErr

			for _, cmd := range []string{"a", "b", "c", "x"} {
				err := h.service.SendCommand(cmd)
				if !errors.Is(err, ErrDeviceUnavailable) {
					t.Fatalf("SendCommand(%q) error = %v, want ErrDeviceUnavailable", cmd, err)
				}
				if tt.checkErr != nil && !errors.Is(err, tt.checkErr) {
					t.Errorf("SendCommand(%q) error = %v, want it to wrap %v", cmd, err, tt.checkErr)
				}
			}

			if h.service.Status().Connected {
				t.Error("Status() reports connected with no device")
			}
			if h.dev.Writes() != 0 {
				t.Errorf("writes = %d, want 0", h.dev.Writes())
			}
		})
	}
}

func TestAddressCheckErrorsAreLoggedDistinctly(t *testing.T) {
	notFound := newHarness(t, testSettings(), discovery.ErrAddressNotFound)
	notFound.service.SendCommand("a")
	if notFound.logs.FilterMessage("Device address does not exist").Len() != 1 {
		t.Error("missing address not logged")
	}

	denied := newHarness(t, testSettings(), discovery.ErrPermissionDenied)
	denied.service.SendCommand("a")
	if denied.logs.FilterMessageSnippet("No permission").Len() != 1 {
		t.Error("permission problem not logged")
	}
}

func TestSendCommandRetriesUntilSuccess(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	h.resetSleeps()
	before := h.dev.Writes()

	h.dev.FailNextWrites = 2
	if err := h.service.SendCommand("a"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	if got := h.dev.Writes() - before; got != 3 {
		t.Errorf("write attempts = %d, want 3", got)
	}
	if got := h.sleepCalls(); len(got) != 2 || got[0] != 500*time.Millisecond || got[1] != 500*time.Millisecond {
		t.Errorf("retry sleeps = %v, want two 500ms delays", got)
	}
	if !h.service.Status().Connected {
		t.Error("Status() not connected after a successful retry")
	}

	attempts := h.logs.FilterMessage("Command failed").All()
	if len(attempts) != 2 {
		t.Fatalf("logged %d failed attempts, want 2", len(attempts))
	}
	if attempts[1].ContextMap()["attempt"] != int64(2) {
		t.Errorf("second failure fields = %v", attempts[1].ContextMap())
	}
}

func TestSendCommandAllAttemptsFail(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	h.resetSleeps()
	before := h.dev.Writes()

	h.dev.FailWrites = true
	err := h.service.SendCommand("b")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("SendCommand() error = %v, want ErrSendFailed", err)
	}

	if got := h.dev.Writes() - before; got != 3 {
		t.Errorf("write attempts = %d, want 3", got)
	}
	if got := h.sleepCalls(); len(got) != 2 {
		t.Errorf("retry sleeps = %v, want 2 (no delay after the last attempt)", got)
	}
	if h.service.Status().Connected {
		t.Error("Status() reports connected after every send failed")
	}
}

func TestStatusIsPure(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	conn := h.service.current()
	manager := conn.(*device.Manager)
	snapshot := manager.Snapshot()
	touches := h.dev.Touches()
	first := h.service.Status()

	for i := 0; i < 100; i++ {
		if got := h.service.Status(); got != first {
			t.Fatalf("Status() call %d = %+v, want %+v", i, got, first)
		}
	}

	if h.service.current() != conn {
		t.Error("Status() replaced the connection")
	}
	if manager.Snapshot() != snapshot {
		t.Error("Status() changed the manager state")
	}
	if h.dev.Touches() != touches {
		t.Error("Status() touched the device")
	}
}

func TestStatusWithoutConnection(t *testing.T) {
	h := newHarness(t, testSettings(), nil)

	if st := h.service.Status(); st.Connected || st.Address != "" {
		t.Errorf("Status() = %+v, want zero value", st)
	}
	if h.service.current() != nil {
		t.Error("Status() created a connection")
	}
}

func TestReconnect(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	old := h.service.current()

	if err := h.service.Reconnect(); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}

	if old.IsConnected() {
		t.Error("previous connection left open")
	}
	if h.service.current() == old {
		t.Error("Reconnect() kept the old connection")
	}
	if h.dev.Opens() != 2 || h.dev.Written() != "cc" {
		t.Errorf("opens = %d, written = %q", h.dev.Opens(), h.dev.Written())
	}
}

func TestReconnectFailure(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	h.service.Initialize()
	h.dev.OpenErr = errors.New("unplugged")

	if err := h.service.Reconnect(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Reconnect() error = %v, want ErrDeviceUnavailable", err)
	}
	if h.service.Status().Connected {
		t.Error("Status() connected after failed reconnect")
	}
}

func TestReadResponseNeverReinitializes(t *testing.T) {
	h := newHarness(t, testSettings(), nil)

	if _, ok := h.service.ReadResponse(time.Second); ok {
		t.Fatal("ReadResponse() ok = true without a connection")
	}
	if h.dev.Touches() != 0 || len(h.checked) != 0 {
		t.Error("ReadResponse() re-initialized the device")
	}

	h.service.Initialize()
	h.dev.Feed("A:ON\n")
	got, ok := h.service.ReadResponse(100 * time.Millisecond)
	if !ok || got != "A:ON" {
		t.Errorf("ReadResponse() = %q, %v", got, ok)
	}
}

func TestTeardown(t *testing.T) {
	h := newHarness(t, testSettings(), nil)
	h.service.Teardown()

	h.service.Initialize()
	h.service.Teardown()

	if h.service.current() != nil {
		t.Error("connection kept after Teardown()")
	}
	if h.dev.Closes() != 1 {
		t.Errorf("closes = %d, want 1", h.dev.Closes())
	}
}

func TestAutoDetect(t *testing.T) {
	settings := testSettings()
	settings.AutoDetect = true
	finder := &fakeFinder{port: "/dev/ttyUSB3"}
	h := newHarness(t, settings, nil, WithPortFinder(finder))

	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if len(finder.got) != 1 || finder.got[0] != "/dev/mock0" {
		t.Errorf("FindPort called with %v", finder.got)
	}
	if st := h.service.Status(); st.Address != "/dev/ttyUSB3" {
		t.Errorf("Status().Address = %q, want detected port", st.Address)
	}
	if cfg, _ := h.dev.LastConfig(); cfg.Port != "/dev/ttyUSB3" {
		t.Errorf("opened %q, want /dev/ttyUSB3", cfg.Port)
	}
}

func TestAutoDetectNoPorts(t *testing.T) {
	settings := testSettings()
	settings.AutoDetect = true
	h := newHarness(t, settings, nil, WithPortFinder(&fakeFinder{err: discovery.ErrNoPorts}))

	err := h.service.SendCommand("a")
	if !errors.Is(err, ErrDeviceUnavailable) || !errors.Is(err, discovery.ErrNoPorts) {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(h.built) != 0 {
		t.Error("a connection was built without a port")
	}
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, testSettings(), nil)

	// startup
	if err := h.service.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := h.service.SendCommand("a"); err != nil {
		t.Fatalf("SendCommand(a) error = %v", err)
	}
	if err := h.service.SendCommand("x"); err != nil {
		t.Fatalf("SendCommand(x) error = %v", err)
	}
	if err := h.service.SendCommand("z"); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("SendCommand(z) error = %v, want ErrInvalidCommand", err)
	}

	if got := h.dev.Written(); got != "cax" {
		t.Errorf("device received %q, want %q", got, "cax")
	}
	if st := h.service.Status(); st != (Status{Connected: true, Address: "/dev/mock0"}) {
		t.Errorf("Status() = %+v", st)
	}

	// device unplugged
	h.dev.FailWrites = true
	h.dev.OpenErr = errors.New("no such device")
	if err := h.service.SendCommand("b"); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("SendCommand(b) error = %v, want ErrSendFailed", err)
	}
	if h.service.Status().Connected {
		t.Error("Status() connected after unplug")
	}

	// plugged back in
	h.dev.FailWrites = false
	h.dev.OpenErr = nil
	if err := h.service.SendCommand("b"); err != nil {
		t.Fatalf("SendCommand(b) after replug error = %v", err)
	}
	if got := h.dev.Written(); got != "caxcb" {
		t.Errorf("device received %q, want %q", got, "caxcb")
	}
}
