package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/views"
)

type SocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	// AllowedOrigins empty or containing "*" accepts any origin.
	AllowedOrigins []string
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

func (c SocketConfig) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

const (
	frameSnapshot = "snapshot"
	frameAck      = "ack"
	frameError    = "error"
)

// frame is every server to client message.
type frame struct {
	Type     string            `json:"type"`
	Snapshot *views.Snapshot   `json:"snapshot,omitempty"`
	Command  views.CommandType `json:"command,omitempty"`
	Code     int               `json:"code,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// serveView upgrades to a websocket and mounts a fresh view for the caller.
// The view lives exactly as long as the connection.
func (h *Handler) serveView(c *gin.Context) {
	role, ok := models.ParseRole(c.Param("role"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown view"})
		return
	}
	claims, err := h.auth.Verify(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if claims.Role != role {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	view, err := h.views(role)
	if err != nil {
		writeError(c, "failed to build view", err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.socket.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		conn:    conn,
		view:    view,
		cfg:     h.socket,
		replies: make(chan frame, 8),
		log: zap.L().With(
			zap.String("request_id", requestID(c)),
			zap.String("role", string(role)),
			zap.String("user_id", claims.Subject),
		),
	}
	s.serve(h.ctx)
}

type session struct {
	conn    *websocket.Conn
	view    views.View
	cfg     SocketConfig
	replies chan frame
	log     *zap.Logger
}

func (s *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := s.view.Mount(ctx); err != nil {
		s.log.Error("failed to mount view", zap.Error(err))
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		_ = s.conn.WriteJSON(frame{Type: frameError, Code: statusFor(err), Error: err.Error()})
		s.conn.Close()
		return
	}
	defer s.view.Unmount()

	id, snaps := s.view.Subscribe()
	defer s.view.Unsubscribe(id)

	s.log.Info("view connected")
	done := make(chan struct{})
	go func() {
		defer close(done)
		// a dead writer ends the session; the closed conn fails the reader
		defer cancel()
		s.writePump(ctx, snaps)
	}()

	s.readPump(ctx)
	cancel()
	<-done
	s.log.Info("view disconnected")
}

func (s *session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for ctx.Err() == nil {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var cmd views.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(ctx, frame{Type: frameError, Code: http.StatusBadRequest, Error: "invalid command"})
			continue
		}
		if err := s.view.Handle(ctx, cmd); err != nil {
			code := statusFor(err)
			msg := err.Error()
			if code >= http.StatusInternalServerError {
				s.log.Error("command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
				msg = http.StatusText(code)
			}
			s.reply(ctx, frame{Type: frameError, Command: cmd.Type, Code: code, Error: msg})
			continue
		}
		s.reply(ctx, frame{Type: frameAck, Command: cmd.Type})
	}
}

func (s *session) reply(ctx context.Context, f frame) {
	select {
	case s.replies <- f:
	case <-ctx.Done():
	}
}

// writePump owns every write on the connection.
func (s *session) writePump(ctx context.Context, snaps <-chan views.Snapshot) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				s.close()
				return
			}
			if err := s.write(frame{Type: frameSnapshot, Snapshot: &snap}); err != nil {
				return
			}
		case f := <-s.replies:
			if err := s.write(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			s.close()
			return
		}
	}
}

func (s *session) write(f frame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	if err := s.conn.WriteJSON(f); err != nil {
		s.log.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *session) close() {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
