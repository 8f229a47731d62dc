package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mr1hm/go-vitatrack/internal/auth"
	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/repository"
	"github.com/mr1hm/go-vitatrack/internal/seed"
	"github.com/mr1hm/go-vitatrack/internal/views"
	"github.com/mr1hm/go-vitatrack/internal/worker"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []worker.NotificationJob
	err  error
}

func (q *recordingQueue) TrySubmit(job worker.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	db      *repository.SQLiteDB
	queue   *recordingQueue
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	return setupTestRouterWith(t, nil)
}

// setupTestRouterWith lets a test adjust the handler options before the
// handler is built.
func setupTestRouterWith(t *testing.T, configure func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := auth.NewService(db, auth.Config{Secret: "test-secret", Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to build auth: %v", err)
	}

	data, err := seed.Load("")
	if err != nil {
		t.Fatalf("failed to load seed: %v", err)
	}
	fc := clock.NewFake(time.Date(2024, 1, 15, 14, 45, 0, 0, time.UTC))

	queue := &recordingQueue{}
	opts := Options{
		Auth:  svc,
		Store: db,
		Queue: queue,
		Views: func(role models.Role) (views.View, error) {
			return views.New(role, views.Deps{
				Seed:  data,
				Clock: fc,
				Rand:  clock.NewSequenceRand([]float64{0.5}, []int{0}),
				Store: db,
			})
		},
	}
	if configure != nil {
		configure(&opts)
	}
	handler := NewHandler(opts)
	t.Cleanup(handler.Close)

	router := gin.New()
	router.Use(RequestID())
	handler.RegisterRoutes(router)

	return &testEnv{router: router, handler: handler, db: db, queue: queue}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login signs up a user with role and returns its session token.
func (e *testEnv) login(t *testing.T, email string, role models.Role) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "hunter22", "role": role})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = e.do(http.MethodPost, "/api/auth/signin", "", gin.H{"email": email, "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Session auth.Session `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return resp.Session.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return m
}

func TestHealthHandler(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if decode(t, w)["status"] != "ok" {
		t.Errorf("expected status ok, got %s", w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestVocabulary(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/status/vocabulary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Statuses []map[string]any `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Statuses, 10)
}

func TestAuthFlow(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "Dispatch@Example.com", "password": "hunter22", "role": "admin"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "Signed up successfully!", decode(t, w)["message"])
	require.NotContains(t, w.Body.String(), "hunter22")

	tests := []struct {
		name string
		body gin.H
		code int
		msg  string
	}{
		{"duplicate", gin.H{"email": "dispatch@example.com", "password": "hunter22", "role": "admin"}, http.StatusConflict, "Error signing up"},
		{"bad email", gin.H{"email": "nope", "password": "hunter22", "role": "admin"}, http.StatusBadRequest, "invalid email address"},
		{"short password", gin.H{"email": "a@example.com", "password": "abc", "role": "admin"}, http.StatusBadRequest, "at least 6"},
		{"unknown role", gin.H{"email": "a@example.com", "password": "hunter22", "role": "pilot"}, http.StatusBadRequest, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/auth/signup", "", tt.body)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			require.Contains(t, decode(t, w)["error"], tt.msg)
		})
	}

	w = env.do(http.MethodPost, "/api/auth/signin", "", gin.H{"email": "dispatch@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/auth/signin", "", gin.H{"email": "dispatch@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "Signed in successfully!", body["message"])
	token := body["session"].(map[string]any)["token"].(string)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications", token, nil).Code)

	w = env.do(http.MethodPost, "/api/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Signed out successfully!", decode(t, w)["message"])

	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/notifications", token, nil).Code)
}

func TestNotifications(t *testing.T) {
	env := setupTestRouter(t)
	admin := env.login(t, "admin@example.com", models.RoleAdmin)
	driver := env.login(t, "driver@example.com", models.RoleDriver)

	w := env.do(http.MethodPost, "/api/notifications", admin, gin.H{"message": "  Unit 3 back in service ", "type": "warning"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, env.queue.jobs, 1)
	require.Equal(t, "Unit 3 back in service", env.queue.jobs[0].Message)
	require.Equal(t, models.NotificationWarning, env.queue.jobs[0].Type)
	require.Equal(t, w.Header().Get(RequestIDHeader), env.queue.jobs[0].RequestID)

	require.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/notifications", driver, gin.H{"message": "hi"}).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/notifications", "", gin.H{"message": "hi"}).Code)
	require.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/notifications", admin, gin.H{"message": "hi", "type": "loud"}).Code)
	require.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/notifications", admin, gin.H{"message": "   "}).Code)

	env.queue.err = worker.ErrQueueFull
	require.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodPost, "/api/notifications", admin, gin.H{"message": "hi"}).Code)

	for i := 0; i < 7; i++ {
		_, err := env.db.Append(t.Context(), models.NewNotification{Message: fmt.Sprintf("n%d", i), Type: models.NotificationInfo})
		require.NoError(t, err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=3", 3},
		{"?limit=0", 5},
		{"?limit=abc", 5},
		{"?limit=500", 5},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/notifications"+tt.query, driver, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var resp struct {
				Notifications []models.Notification `json:"notifications"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Notifications, tt.want)
			require.Equal(t, "n6", resp.Notifications[0].Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("id", "missing"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", auth.ErrInvalidToken), http.StatusUnauthorized},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrInvalidState, http.StatusConflict},
		{models.ErrTransient, http.StatusServiceUnavailable},
		{worker.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 45, 0, 0, time.UTC)
	l := newClientLimiter(2, time.Minute, func() time.Time { return now })

	require.True(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.1"))
	require.False(t, l.allow("10.0.0.1"))
	// other clients have their own budget
	require.True(t, l.allow("10.0.0.2"))

	now = now.Add(time.Second)
	require.True(t, l.allow("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.3")
	require.Len(t, l.clients, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes[i] = w.Code
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func readFrame(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("failed to read frame: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func TestServeView(t *testing.T) {
	env := setupTestRouter(t)
	admin := env.login(t, "admin@example.com", models.RoleAdmin)
	family := env.login(t, "family@example.com", models.RoleFamily)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/admin?token="+family, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/admin", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+admin)
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/admin", header)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn, func(f frame) bool { return f.Type == frameSnapshot })
	require.Equal(t, models.RoleAdmin, f.Snapshot.Role)
	require.Equal(t, 2, f.Snapshot.Alerts.Unread)

	require.NoError(t, conn.WriteJSON(views.Command{Type: views.CmdMarkAllRead}))
	f = readFrame(t, conn, func(f frame) bool { return f.Type == frameAck })
	require.Equal(t, views.CmdMarkAllRead, f.Command)
	readFrame(t, conn, func(f frame) bool {
		return f.Type == frameSnapshot && f.Snapshot.Alerts.Unread == 0
	})

	require.NoError(t, conn.WriteJSON(views.Command{Type: views.CmdSetStatus, ID: "AMB-404", Status: "offline"}))
	f = readFrame(t, conn, func(f frame) bool { return f.Type == frameError })
	require.Equal(t, http.StatusNotFound, f.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = readFrame(t, conn, func(f frame) bool { return f.Type == frameError })
	require.Equal(t, http.StatusBadRequest, f.Code)

	// closing the handler ends open sessions
	env.handler.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}

// unmountSignal reports when the wrapped view is unmounted.
type unmountSignal struct {
	views.View
	once sync.Once
	done chan struct{}
}

func (u *unmountSignal) Unmount() {
	u.View.Unmount()
	u.once.Do(func() { close(u.done) })
}

func TestServeView_FailedWriteUnmountsView(t *testing.T) {
	built := make(chan *unmountSignal, 1)
	env := setupTestRouterWith(t, func(o *Options) {
		// every write misses its deadline
		o.Socket = SocketConfig{WriteWait: time.Nanosecond}
		build := o.Views
		o.Views = func(role models.Role) (views.View, error) {
			v, err := build(role)
			if err != nil {
				return nil, err
			}
			u := &unmountSignal{View: v, done: make(chan struct{})}
			built <- u
			return u, nil
		}
	})
	admin := env.login(t, "admin@example.com", models.RoleAdmin)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+admin)
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/admin", header)
	require.NoError(t, err)
	defer conn.Close()

	// more commands than the reply buffer holds, never reading a frame
	for i := 0; i < 32; i++ {
		if err := conn.WriteJSON(views.Command{Type: views.CmdMarkAllRead}); err != nil {
			break
		}
	}

	u := <-built
	select {
	case <-u.done:
	case <-time.After(2 * time.Second):
		t.Fatal("view still mounted after the connection stopped accepting writes")
	}
	require.False(t, u.Mounted())
}
