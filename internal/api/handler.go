package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mr1hm/go-vitatrack/internal/auth"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
	"github.com/mr1hm/go-vitatrack/internal/status"
	"github.com/mr1hm/go-vitatrack/internal/views"
	"github.com/mr1hm/go-vitatrack/internal/worker"
)

const maxNotificationLimit = 50

type Authenticator interface {
	SignUp(ctx context.Context, email, password string, role models.Role) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(token string) (*auth.Claims, error)
}

type NotificationQueue interface {
	TrySubmit(job worker.NotificationJob) error
}

// ViewFactory builds an unmounted view for one connection.
type ViewFactory func(role models.Role) (views.View, error)

type Options struct {
	Auth              Authenticator
	Store             notifications.Store
	Queue             NotificationQueue
	Views             ViewFactory
	NotificationLimit int
	Socket            SocketConfig
}

type Handler struct {
	auth      Authenticator
	store     notifications.Store
	queue     NotificationQueue
	views     ViewFactory
	limit     int
	socket    SocketConfig
	Validator *validator.Validate

	// ctx outlives requests; hijacked websocket connections end when it is
	// cancelled.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(opts Options) *Handler {
	if opts.NotificationLimit <= 0 {
		opts.NotificationLimit = notifications.DefaultLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:       ctx,
		cancel:    cancel,
		auth:      opts.Auth,
		store:     opts.Store,
		queue:     opts.Queue,
		views:     opts.Views,
		limit:     opts.NotificationLimit,
		socket:    opts.Socket.withDefaults(),
		Validator: NewValidator(),
	}
}

// Close ends every open view connection.
func (h *Handler) Close() {
	h.cancel()
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	{
		api.GET("/status/vocabulary", h.vocabulary)
		api.POST("/auth/signup", h.signUp)
		api.POST("/auth/signin", h.signIn)
		api.POST("/auth/signout", h.signOut)
		api.GET("/notifications", h.RequireRole(models.AllRoles()...), h.listNotifications)
		api.POST("/notifications", h.RequireRole(models.RoleAdmin), h.createNotification)
	}

	r.GET("/ws/:role", h.serveView)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) vocabulary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"statuses": status.Vocabulary()})
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,role"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if !h.bind(c, &req) {
		return
	}

	role, _ := models.ParseRole(req.Role)
	u, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, role)
	if err != nil {
		writeError(c, "Error signing up", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Signed up successfully!",
		"user":    u,
	})
}

func (h *Handler) signIn(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, "Error signing in", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Signed in successfully!",
		"session": sess,
	})
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), bearerToken(c)); err != nil {
		writeError(c, "Error signing out", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully!"})
}

func (h *Handler) listNotifications(c *gin.Context) {
	limit := h.limit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxNotificationLimit {
			limit = n
		}
	}

	list, err := h.store.Latest(c.Request.Context(), limit)
	if err != nil {
		writeError(c, "failed to fetch notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications.Sanitize(list, limit)})
}

type notificationRequest struct {
	Message string `json:"message" validate:"required,max=500"`
	Type    string `json:"type" validate:"omitempty,notification_type"`
}

// createNotification queues the append and answers before it is stored.
// Clients see the record once their subscription pushes it.
func (h *Handler) createNotification(c *gin.Context) {
	var req notificationRequest
	if !h.bind(c, &req) {
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(c, "", models.NewValidationError("message", "must not be empty"))
		return
	}

	typ, _ := models.ParseNotificationType(req.Type)
	job := worker.NotificationJob{
		RequestID: requestID(c),
		Message:   msg,
		Type:      typ,
	}
	if err := h.queue.TrySubmit(job); err != nil {
		writeError(c, "failed to queue notification", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "notification queued",
		"request_id": job.RequestID,
	})
}

// bind decodes and validates the JSON body, writing a 400 on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return false
	}
	return true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
