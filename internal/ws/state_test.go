package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sevseg"
	"github.com/coreman2200/sevseg/internal/config"
	diag "github.com/coreman2200/sevseg/internal/diagnostics"
	"github.com/coreman2200/sevseg/refresh"
	"github.com/coreman2200/sevseg/sim"
)

type fakeDisplay struct {
	mu      sync.Mutex
	value   int
	decimal int
	frames  []string
}

func (f *fakeDisplay) Show(v, dp int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value, f.decimal = v, dp
}

func (f *fakeDisplay) ShowFrame(fr sevseg.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr.String())
}

func (f *fakeDisplay) Stats() refresh.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return refresh.Stats{Value: f.value, Decimal: f.decimal}
}

func serve(t *testing.T, s *State) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// dial connects and consumes the topology greeting.
func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	if path != "/control" {
		var top topology
		require.NoError(t, c.ReadJSON(&top))
	}
	return c
}

func readDiag(t *testing.T, c *websocket.Conn) diag.Diagnostic {
	t.Helper()
	var d diag.Diagnostic
	require.NoError(t, c.ReadJSON(&d))
	return d
}

func TestControlShowsAndPersists(t *testing.T) {
	fd := &fakeDisplay{}
	s := NewState(4, fd)
	s.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	s.Config = config.Default()
	srv := serve(t, s)

	c := dial(t, srv, "/control")
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"value":1022,"decimal":2}`)))
	var top topology
	require.NoError(t, c.ReadJSON(&top))
	assert.Equal(t, 4, top.Digits)
	assert.Equal(t, -999, top.Min)
	assert.Equal(t, 9999, top.Max)
	assert.Len(t, top.Segments, sevseg.SegmentCount)

	st := fd.Stats()
	assert.Equal(t, 1022, st.Value)
	assert.Equal(t, 2, st.Decimal)

	saved, err := config.Load(s.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 1022, saved.Value)
	assert.Equal(t, 2, saved.Decimal)

	// Decimal alone keeps the value.
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"decimal":0}`)))
	require.NoError(t, c.ReadJSON(&top))
	assert.Equal(t, refresh.Stats{Value: 1022}, fd.Stats())
}

func TestFramesBroadcastOnChange(t *testing.T) {
	s := NewState(4, &fakeDisplay{})
	srv := serve(t, s)
	c := dial(t, srv, "/ws")

	f := sevseg.Compose(1022, 2, 4)
	raw := make([]sevseg.Segments, len(f))
	for i, cell := range f {
		m, err := cell.Segments()
		require.NoError(t, err)
		raw[i] = m
	}
	s.Publish(f, raw)
	s.Publish(f, raw)
	s.tick()

	var m frameMsg
	require.NoError(t, c.ReadJSON(&m))
	assert.Equal(t, uint64(1), m.FrameID)
	assert.Equal(t, "10.22", m.Text)
	assert.Equal(t, []string{"BC", "ABCDEFDP", "ABDEG", "ABDEG"}, m.Segments)
}

func TestRunTestSweepsThenRestores(t *testing.T) {
	fd := &fakeDisplay{value: 7}
	s := NewState(4, fd)
	srv := serve(t, s)
	d := dial(t, srv, "/diag")

	s.applyControl(Control{RunTest: "digit_sweep"})
	assert.Equal(t, "TEST.RUNNING", readDiag(t, d).Code)

	for i := 0; i < 5; i++ {
		s.tick()
	}
	assert.Equal(t, []string{"8.   ", " 8.  ", "  8. ", "   8."}, fd.frames)
	assert.Equal(t, "TEST.DONE", readDiag(t, d).Code)
	assert.Equal(t, 7, fd.Stats().Value)

	s.applyControl(Control{RunTest: "rainbow"})
	assert.Equal(t, "TEST.RUNNING", readDiag(t, d).Code)
	assert.Equal(t, "TEST.UNKNOWN", readDiag(t, d).Code)
}

func TestGhostingRaisesDiagnostic(t *testing.T) {
	l := sevseg.CommonCathode.Levels(false)
	b := sim.NewBoard()
	w := sim.DefaultWiring(2, l)
	s := NewState(2, &fakeDisplay{})
	s.Attach(sim.Attach(b, w))
	srv := serve(t, s)
	d := dial(t, srv, "/diag")

	digits, _ := w.Pins(b)
	require.NoError(t, digits[0].Out(l.DigitOn))
	require.NoError(t, digits[1].Out(l.DigitOn))
	s.tick()
	assert.Equal(t, "SCAN.GHOSTING", readDiag(t, d).Code)
}

func TestHealth(t *testing.T) {
	s := NewState(3, &fakeDisplay{value: -42, decimal: 2})
	s.CurrentDriver = "sim"
	srv := serve(t, s)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "sim", h["driver"])
	assert.Equal(t, float64(3), h["digits"])
	assert.Equal(t, float64(-42), h["value"])
	assert.Equal(t, "---", h["text"])
}

func frameOf(value int) (sevseg.Frame, []sevseg.Segments) {
	f := sevseg.Compose(value, 0, 4)
	raw := make([]sevseg.Segments, len(f))
	for i, cell := range f {
		raw[i], _ = cell.Segments()
	}
	return f, raw
}

// Clients joining while frames and diagnostics are broadcast must each see
// their greeting first, and no connection may be written concurrently.
func TestBroadcastWhileClientsJoin(t *testing.T) {
	s := NewState(4, &fakeDisplay{})
	srv := serve(t, s)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f, raw := frameOf(i%100)
			s.Publish(f, raw)
			s.tick()
			if i%10 == 0 {
				s.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: "LOAD.TICK"})
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	for i := 0; i < 50; i++ {
		for _, path := range []string{"/ws", "/diag"} {
			c, _, err := websocket.DefaultDialer.Dial(url+path, nil)
			require.NoError(t, err)
			var top topology
			require.NoError(t, c.ReadJSON(&top))
			assert.Equal(t, 4, top.Digits, "first message on %s is the topology", path)
			c.Close()
		}
	}
	close(stop)
	<-done
}

// A client whose write is stuck must not hold up the render goroutine.
func TestPublishNotBlockedBySlowClient(t *testing.T) {
	s := NewState(4, &fakeDisplay{})
	srv := serve(t, s)
	dial(t, srv, "/ws")

	s.mu.RLock()
	clients := keys(s.clients)
	s.mu.RUnlock()
	require.Len(t, clients, 1)
	stuck := clients[0]
	stuck.mu.Lock()

	f, raw := frameOf(12)
	s.Publish(f, raw)
	ticked := make(chan struct{})
	go func() {
		s.tick()
		close(ticked)
	}()

	published := make(chan struct{})
	go func() {
		f, raw := frameOf(34)
		s.Publish(f, raw)
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked behind a client write")
	}

	stuck.mu.Unlock()
	<-ticked
}

func TestDiagHistoryReplayed(t *testing.T) {
	s := NewState(4, &fakeDisplay{})
	srv := serve(t, s)
	s.PushDiag(diag.FromFallback("cdev", errors.New("no chip")))

	d := dial(t, srv, "/diag")
	assert.Equal(t, "DRIVER.FALLBACK", readDiag(t, d).Code)

	s.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: "LIVE"})
	assert.Equal(t, "LIVE", readDiag(t, d).Code)
}
