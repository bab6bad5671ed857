package app

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	mu       sync.Mutex
	config   Config
	stopped  int
	shutdown chan struct{}
	gauge    prometheus.Gauge
}

func newTestApp() *testApp {
	return &testApp{
		shutdown: make(chan struct{}),
		gauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "test_app_gauge",
			Help: "test gauge",
		}),
	}
}

func (a *testApp) Init(config Config, _ *newrelic.Application) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = config
	return nil
}

func (a *testApp) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func (a *testApp) Collectors() []prometheus.Collector {
	return []prometheus.Collector{a.gauge}
}

func (a *testApp) ShutdownChan() <-chan struct{} {
	return a.shutdown
}

func (a *testApp) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped++
}

func (a *testApp) stopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func testConfig() BaseConfig {
	config := DefaultConfig()
	config.AppName = "test"
	config.EnablePprof = false
	config.EnableExpvar = false
	config.EnableMetrics = false
	config.ShutdownGracePeriod = 5 * time.Second
	config.AppConfig = Config{"key": "value"}
	return config
}

func TestServe_ShutdownOnSignal(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := newTestApp()
	sigCh := make(chan os.Signal, 1)

	var middlewareCalls atomic.Int32
	o := opts{}
	WithMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			middlewareCalls.Add(1)
			next.ServeHTTP(w, r)
		})
	})(&o)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(testConfig(), app, nil, o, lis, sigCh)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + lis.Addr().String() + "/anything")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))
	assert.EqualValues(t, 1, middlewareCalls.Load())

	sigCh <- os.Interrupt

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}

	assert.Equal(t, 1, app.stopCount())
	assert.Equal(t, "value", app.config["key"])
}

func TestServe_ShutdownOnAppShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := newTestApp()
	close(app.shutdown)

	require.NoError(t, serve(testConfig(), app, nil, opts{}, lis, make(chan os.Signal)))
	assert.Equal(t, 1, app.stopCount())
}

func TestServe_InvalidMemoryLeakSchedule(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	config := testConfig()
	config.EnableMemoryLeakCron = true
	config.MemoryLeakCronSchedule = "not a schedule"

	app := newTestApp()
	assert.Error(t, serve(config, app, nil, opts{}, lis, make(chan os.Signal)))
	assert.Equal(t, 1, app.stopCount())
}

func TestDebugMux(t *testing.T) {
	app := newTestApp()
	app.gauge.Set(42)

	config := testConfig()
	config.EnableMetrics = true
	config.EnableExpvar = true

	debugMux, err := newDebugMux(config, app.Collectors())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	debugMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_app_gauge 42")

	rec = httptest.NewRecorder()
	debugMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	debugMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Registering the same collector twice fails
	_, err = newDebugMux(config, []prometheus.Collector{app.gauge, app.gauge})
	assert.Error(t, err)
}

func TestBallastSize(t *testing.T) {
	assert.EqualValues(t, 0, ballastSize(0, 1000))
	assert.EqualValues(t, 250, ballastSize(0.25, 1000))
	assert.EqualValues(t, 500, ballastSize(0.9, 1000))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o600))

	for _, fileURL := range []string{path, "file://" + path} {
		b, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, "contents", string(b))
	}

	_, err := LoadFile("s3://bucket/key")
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadTLSConfig(t *testing.T) {
	config := testConfig()
	config.TLSCertificate = "cert.pem"

	_, err := loadTLSConfig(config)
	assert.Error(t, err)
}
