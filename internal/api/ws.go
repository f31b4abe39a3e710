package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dgallion1/hl7lens/internal/selection"
	"github.com/dgallion1/hl7lens/internal/session"
	"github.com/dgallion1/hl7lens/internal/tree"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsUpdate is pushed to the client after every selection change.
type wsUpdate struct {
	Type string     `json:"type"`
	Tree *tree.Node `json:"tree,omitempty"`
	session.SelectionView
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsClient is one websocket observer of a session. Selection changes only
// mark it dirty; the writer goroutine sends the latest state, so a slow
// client never blocks the goroutine that changed the selection.
type wsClient struct {
	conn    *websocket.Conn
	sess    *session.Session
	dirty   chan struct{}
	done    chan struct{}
	writeMu sync.Mutex
}

func (c *wsClient) notify() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *wsClient) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-c.dirty:
			update := wsUpdate{
				Type:          "selection",
				Tree:          c.sess.Tree(),
				SelectionView: c.sess.DescribeSelection(),
			}
			if err := c.write(update); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// readLoop applies selections sent by the client until the connection closes.
func (c *wsClient) readLoop() {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var req selectionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = c.write(wsError{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}
		sel, err := parseSelection(req.Path)
		if err != nil {
			_ = c.write(wsError{Type: "error", Error: err.Error()})
			continue
		}
		c.sess.Select(sel)
	}
}

// handleWebsocket makes the connection an observer of the session's
// selection. The current state is sent on connect.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session_id", sess.ID, "error", err)
		return
	}

	c := &wsClient{
		conn:  conn,
		sess:  sess,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	log := s.log.With("session_id", sess.ID)
	log.Info("websocket observer connected", "remote", r.RemoteAddr)

	// The replay on subscribe covers sessions that already have a
	// selection; the extra notify covers those that never had one.
	unsubscribe := sess.Subscribe(func(selection.Selection) { c.notify() })
	c.notify()

	go c.writeLoop()
	c.readLoop()

	unsubscribe()
	close(c.done)
	conn.Close()
	log.Info("websocket observer disconnected")
}
