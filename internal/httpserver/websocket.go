package httpserver

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/dsp"
	"github.com/matiaszanolli/auralis-go/internal/streaming"
)

// upgrader promotes /ws requests to WebSocket connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// wsTransport adapts a gorilla connection to streaming.Transport. Writes
// are serialized; a failed write marks the connection gone.
type wsTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	t := &wsTransport{conn: conn}
	t.connected.Store(true)
	return t
}

// Send implements streaming.Transport.
func (t *wsTransport) Send(msg streaming.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteJSON(msg); err != nil {
		t.connected.Store(false)
		return err
	}
	return nil
}

// Connected implements streaming.Transport.
func (t *wsTransport) Connected() bool {
	return t.connected.Load()
}

func (t *wsTransport) close() {
	t.connected.Store(false)
	_ = t.conn.Close()
}

// rateLimiter is a sliding one-second window over inbound messages.
type rateLimiter struct {
	perSecond int
	stamps    []time.Time
}

func (r *rateLimiter) allow(now time.Time) bool {
	cutoff := now.Add(-time.Second)
	kept := r.stamps[:0]
	for _, ts := range r.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.stamps = kept
	if len(r.stamps) >= r.perSecond {
		return false
	}
	r.stamps = append(r.stamps, now)
	return true
}

// connState tracks what one client is playing, for preset_change and the
// bare seek form.
type connState struct {
	trackID   int64
	preset    string
	intensity float64
	session   *streaming.Session
}

// handleWebSocket runs one client connection: parse, validate, rate-limit,
// and dispatch inbound messages; stream sessions emit on the same socket.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	connID := uuid.NewString()
	transport := newWSTransport(conn)
	limiter := &rateLimiter{perSecond: s.settings.Streaming.MessagesPerSecond}
	state := &connState{}
	log := s.log.With("conn_id", connID)

	conn.SetReadLimit(s.settings.Streaming.MaxMessageBytes)
	log.Info("websocket client connected", "remote", c.Request().RemoteAddr)

	defer func() {
		if state.session != nil {
			state.session.Stop()
			<-state.session.Done()
		}
		transport.close()
		log.Info("websocket client disconnected")
	}()

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			transport.connected.Store(false)
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if !limiter.allow(time.Now()) {
			s.sendError(transport, streaming.CodeRateLimited, "rate limit exceeded")
			continue
		}

		var msg streaming.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendError(transport, streaming.CodeInvalidJSON, "malformed JSON")
			continue
		}

		s.dispatch(transport, state, msg)
	}
}

// dispatch routes one inbound message.
func (s *Server) dispatch(transport *wsTransport, state *connState, msg streaming.Message) {
	switch msg.Type {
	case streaming.TypePing:
		_ = transport.Send(streaming.NewMessage(streaming.TypePong, map[string]any{}))

	case streaming.TypePlay:
		var req streaming.PlayRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.TrackID == 0 {
			s.sendError(transport, streaming.CodeValidation, "invalid play request")
			return
		}
		if req.Preset == "" {
			req.Preset = "adaptive"
		}
		if !validPreset(req.Preset) {
			s.sendError(transport, streaming.CodeValidation, "unknown preset")
			return
		}
		state.trackID = req.TrackID
		state.preset = req.Preset
		state.intensity = req.Intensity
		state.session = s.ctrl.StartStream(transport, req.TrackID, req.Preset, req.Intensity, 0)

	case streaming.TypeSeek:
		var req streaming.SeekRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.sendError(transport, streaming.CodeValidation, "invalid seek request")
			return
		}
		trackID := req.TrackID
		if trackID == 0 {
			trackID = state.trackID
		}
		if trackID == 0 {
			s.sendError(transport, streaming.CodeValidation, "seek without a playing track")
			return
		}
		state.trackID = trackID
		state.session = s.ctrl.StartStream(transport, trackID, state.presetOrDefault(), state.intensity, req.PositionS)

	case streaming.TypePresetChange:
		var req streaming.PresetChangeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || !validPreset(req.Preset) {
			s.sendError(transport, streaming.CodeValidation, "invalid preset change")
			return
		}
		if state.session == nil {
			s.sendError(transport, streaming.CodeValidation, "preset change without a playing track")
			return
		}
		position := state.session.Position()
		if s.predict != nil {
			s.predict.RecordSwitch(state.preset, req.Preset)
		}
		state.preset = req.Preset
		state.intensity = req.Intensity
		state.session = s.ctrl.StartStream(transport, state.trackID, req.Preset, req.Intensity, position)

	case streaming.TypeCacheStatus, streaming.TypeCacheStats:
		_ = transport.Send(streaming.NewMessage(msg.Type, s.ctrl.CacheStats()))

	case streaming.TypePause, streaming.TypeStop, streaming.TypeCancel:
		if state.session != nil {
			state.session.Stop()
			state.session = nil
		}

	default:
		s.sendError(transport, streaming.CodeValidation, "unknown message type")
	}
}

// validPreset accepts the closed preset enumeration plus the unprocessed
// passthrough.
func validPreset(preset string) bool {
	return preset == chunkcache.PresetNone || dsp.Preset(preset).Valid()
}

func (state *connState) presetOrDefault() string {
	if state.preset == "" {
		return "adaptive"
	}
	return state.preset
}

func (s *Server) sendError(transport *wsTransport, code, detail string) {
	_ = transport.Send(streaming.NewMessage(streaming.TypeError, map[string]string{
		"code":  code,
		"error": detail,
	}))
}
