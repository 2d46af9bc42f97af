package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/sevseg"
	"github.com/coreman2200/sevseg/internal/config"
	diag "github.com/coreman2200/sevseg/internal/diagnostics"
	"github.com/coreman2200/sevseg/internal/selftest"
	"github.com/coreman2200/sevseg/refresh"
	"github.com/coreman2200/sevseg/sim"
)

// Display is the part of *refresh.Loop the preview drives.
type Display interface {
	Show(value, decimalPlace int)
	ShowFrame(f sevseg.Frame)
	Stats() refresh.Stats
}

// diagHistory is how many diagnostics a new /diag client is replayed.
const diagHistory = 16

// client serialises writes to one connection; gorilla allows a single
// writer at a time.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

type State struct {
	mu      sync.RWMutex
	Digits  int
	Display Display

	ConfigPath    string
	Config        *config.Config
	CurrentDriver string

	frame     sevseg.Frame
	raw       []sevseg.Segments
	frameID   uint64
	sentID    uint64
	startTime time.Time

	clients     map[*client]bool
	diagClients map[*client]bool

	// pending diagnostics are queued under mu and sent by flush.
	pending [][]byte
	history [][]byte

	testRunner *selftest.Runner
	decoder    *sim.Decoder
	ghosts     uint64
	slowPassed bool
}

func NewState(digits int, d Display) *State {
	return &State{
		Digits:      digits,
		Display:     d,
		frame:       sevseg.Dashes(digits),
		raw:         make([]sevseg.Segments, digits),
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
}

// Attach follows what dec sees on the simulated board.
func (s *State) Attach(dec *sim.Decoder) {
	s.mu.Lock()
	s.decoder = dec
	s.mu.Unlock()
	dec.OnFrame(s.Publish)
}

// Publish records a decoded frame. It runs on the render goroutine and
// only holds the state lock for the copy; Run does the network writes.
func (s *State) Publish(f sevseg.Frame, raw []sevseg.Segments) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.String() == s.frame.String() && equalSegments(raw, s.raw) {
		return
	}
	s.frame, s.raw = f, raw
	s.frameID++
}

// Run steps self tests and pushes frame changes every interval until ctx
// ends.
func (s *State) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *State) tick() {
	s.mu.Lock()
	if s.testRunner != nil {
		f, ok := s.testRunner.Step(s.Digits)
		if ok {
			s.Display.ShowFrame(f)
		} else {
			s.testRunner = nil
			st := s.Display.Stats()
			s.Display.Show(st.Value, st.Decimal)
			s.queueDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "Test complete"})
		}
	}

	st := s.Display.Stats()
	var ds sim.Stats
	if s.decoder != nil {
		ds = s.decoder.Stats()
	}
	slow := st.LastPeriod > refresh.FlickerLimit
	if ds.Ghosts > s.ghosts || (slow && !s.slowPassed) {
		for _, d := range diag.FromDecoder(ds, st.LastPeriod, refresh.FlickerLimit) {
			s.queueDiag(d)
		}
	}
	s.ghosts = ds.Ghosts
	s.slowPassed = slow
	s.mu.Unlock()

	s.flush()
}

// flush sends a changed frame and any queued diagnostics. It must be
// called without s.mu held.
func (s *State) flush() {
	s.mu.Lock()
	var frame []byte
	if s.frameID != s.sentID {
		s.sentID = s.frameID
		frame = s.frameMessage()
	}
	diags := s.pending
	s.pending = nil
	frameClients := keys(s.clients)
	diagClients := keys(s.diagClients)
	s.mu.Unlock()

	if frame != nil {
		for _, c := range frameClients {
			if err := c.write(frame); err != nil {
				log.Debug().Err(err).Msg("write frame")
			}
		}
	}
	for _, b := range diags {
		for _, c := range diagClients {
			_ = c.write(b)
		}
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := s.register(conn, s.clients, false)
	go s.drain(c, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := s.register(conn, s.diagClients, true)
	go s.drain(c, s.diagClients)
}

// register adds conn to set and greets it with the topology, plus the
// diagnostic history when replay is set. The client's writer is held
// until the greeting is out, so broadcasts always follow it.
func (s *State) register(conn *websocket.Conn, set map[*client]bool, replay bool) *client {
	top := s.topology()
	c := &client{conn: conn}
	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	set[c] = true
	greeting := [][]byte{top}
	if replay {
		// Queued diagnostics reach this client through flush.
		sent := len(s.history) - len(s.pending)
		if sent > 0 {
			greeting = append(greeting, s.history[:sent]...)
		}
	}
	s.mu.Unlock()

	for _, b := range greeting {
		conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write greeting")
			break
		}
	}
	return c
}

// drain reads until the peer goes away, then forgets c.
func (s *State) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Control is a message on /control. Unset fields are left alone.
type Control struct {
	Value   *int   `json:"value,omitempty"`
	Decimal *int   `json:"decimal,omitempty"`
	RunTest string `json:"runTest,omitempty"`
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Control
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("bad control message")
			continue
		}
		s.applyControl(msg)
		_ = c.write(s.topology())
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.Display.Stats()
	resp := map[string]any{
		"frame_id":  s.frameID,
		"uptime_s":  time.Since(s.startTime).Seconds(),
		"digits":    s.Digits,
		"driver":    s.CurrentDriver,
		"text":      s.frame.String(),
		"value":     st.Value,
		"decimal":   st.Decimal,
		"passes":    st.Frames,
		"errors":    st.Errors,
		"period_us": st.LastPeriod.Microseconds(),
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) applyControl(msg Control) {
	s.mu.Lock()
	if msg.Value != nil || msg.Decimal != nil {
		st := s.Display.Stats()
		v, dp := st.Value, st.Decimal
		if msg.Value != nil {
			v = *msg.Value
		}
		if msg.Decimal != nil {
			dp = *msg.Decimal
		}
		if dp < 0 || dp > s.Digits {
			s.queueDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "CONTROL.DECIMAL", Summary: "Decimal place off the display",
				Evidence: map[string]any{"decimal": dp, "digits": s.Digits},
			})
		}
		s.testRunner = nil
		s.Display.Show(v, dp)
		log.Info().Int("value", v).Int("decimal", dp).Msg("control: show")
		s.saveConfig(v, dp)
	}

	if msg.RunTest != "" {
		s.queueDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: msg.RunTest})
		if k, ok := selftest.ParseKind(msg.RunTest); ok {
			s.testRunner = selftest.NewRunner(selftest.Plan{Kind: k})
		} else {
			s.queueDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
				Evidence: map[string]any{"name": msg.RunTest},
			})
		}
	}
	s.mu.Unlock()

	s.flush()
}

func (s *State) saveConfig(value, decimal int) {
	if s.ConfigPath == "" || s.Config == nil {
		return
	}
	s.Config.Value, s.Config.Decimal = value, decimal
	if err := config.Save(s.ConfigPath, s.Config); err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("config save failed")
	}
}

// topology describes the display to a newly connected client.
type topology struct {
	Digits   int      `json:"digits"`
	Segments []string `json:"segments"`
	Driver   string   `json:"driver"`
	Min      int      `json:"min"`
	Max      int      `json:"max"`
}

func (s *State) topology() []byte {
	s.mu.RLock()
	top := topology{Digits: s.Digits, Driver: s.CurrentDriver}
	s.mu.RUnlock()
	top.Min, top.Max = sevseg.Range(top.Digits)
	for seg := sevseg.SegA; seg <= sevseg.SegDP; seg++ {
		top.Segments = append(top.Segments, seg.String())
	}
	b, _ := json.Marshal(top)
	return b
}

// frameMsg is what /ws clients receive on every change.
type frameMsg struct {
	T        int64    `json:"t"`
	FrameID  uint64   `json:"frame_id"`
	Text     string   `json:"text"`
	Segments []string `json:"segments"`
	Bits     []uint8  `json:"bits"`
}

// frameMessage needs s.mu held.
func (s *State) frameMessage() []byte {
	m := frameMsg{T: time.Now().UnixNano(), FrameID: s.frameID, Text: s.frame.String()}
	for _, seg := range s.raw {
		m.Segments = append(m.Segments, seg.String())
		m.Bits = append(m.Bits, uint8(seg))
	}
	b, _ := json.Marshal(m)
	return b
}

// queueDiag needs s.mu held.
func (s *State) queueDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.pending = append(s.pending, b)
	s.history = append(s.history, b)
	if len(s.history) > diagHistory {
		s.history = s.history[len(s.history)-diagHistory:]
	}
}

// PushDiag sends d to every /diag client and keeps it for later ones.
func (s *State) PushDiag(d diag.Diagnostic) {
	s.mu.Lock()
	s.queueDiag(d)
	s.mu.Unlock()
	s.flush()
}

func keys(m map[*client]bool) []*client {
	out := make([]*client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}

func equalSegments(a, b []sevseg.Segments) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
