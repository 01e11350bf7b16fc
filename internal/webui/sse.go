package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// heartbeatInterval keeps an idle SSE connection from being reaped by a
// proxy between the dashboard and this process.
const heartbeatInterval = 30 * time.Second

// sdkEvent mirrors the wire shape a dashboard consumes: a type tag plus
// whatever payload corectx.Event carried.
type sdkEvent struct {
	Type corectx.EventType `json:"type"`
	Data any               `json:"data"`
}

type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, fmt.Errorf("webui: streaming not supported")
	}
	return &sseWriter{w: w, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) writeHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// allEvents streams every event published on the bus, unfiltered.
func (s *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, func(corectx.Event) bool { return true })
}

// sessionEvents streams only events whose payload belongs to the path's
// session id.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeNotFound, "invalid session id")
		return
	}
	s.streamEvents(w, r, func(e corectx.Event) bool { return eventBelongsToSession(e, id) })
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, match func(corectx.Event) bool) {
	sseHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)

	events := make(chan corectx.Event, 16)
	unsub := s.deps.Bus.SubscribeAll(func(e corectx.Event) {
		if !match(e) {
			return
		}
		select {
		case events <- e:
		default:
		}
	})
	defer unsub()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent(sdkEvent{Type: e.Type, Data: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.writeHeartbeat(); err != nil {
				return
			}
		}
	}
}

// eventBelongsToSession inspects the known corectx.Event payload shapes for
// the session id they carry.
func eventBelongsToSession(e corectx.Event, sessionID int64) bool {
	switch data := e.Data.(type) {
	case *types.Session:
		return data != nil && data.ID == sessionID
	case *types.Approval:
		return data != nil && data.SessionID == sessionID
	case *types.Question:
		return data != nil && data.SessionID == sessionID
	}
	return false
}
