// Package handler exposes the messaging and friend services over gin and
// upgrades /ws to the push channel.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/auth"
	"raaibar/backend/internal/chathub"
	"raaibar/backend/internal/friends"
	"raaibar/backend/internal/localization"
	"raaibar/backend/internal/messaging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const healthText = "Raaibar Server is Running..."

// Handler holds the services behind the HTTP and WebSocket routes.
type Handler struct {
	Hub       *chathub.Router
	Messages  *messaging.Service
	Friends   *friends.Service
	Auth      *auth.Issuer
	Localizer *localization.Localizer

	lang string
	log  *slog.Logger
}

func NewHandler(hub *chathub.Router, messages *messaging.Service, friendsSvc *friends.Service,
	issuer *auth.Issuer, localizer *localization.Localizer, defaultLang string, log *slog.Logger) *Handler {
	return &Handler{
		Hub:       hub,
		Messages:  messages,
		Friends:   friendsSvc,
		Auth:      issuer,
		Localizer: localizer,
		lang:      defaultLang,
		log:       log,
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(h *Handler, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))
	h.Register(r)
	return r
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Health)
	r.POST("/identities", h.RegisterIdentity)

	authed := r.Group("/", h.Auth.Middleware())
	authed.GET("/ws", h.ServeWebSocket)

	authed.POST("/messages", h.SendMessage)
	authed.GET("/messages/:peer", h.GetHistory)
	authed.POST("/typing", h.SetTyping)

	authed.GET("/friends", h.ListFriends)
	authed.GET("/friends/requests", h.ListPendingRequests)
	authed.POST("/friends/requests", h.SendFriendRequest)
	authed.POST("/friends/requests/:requester/accept", h.AcceptFriendRequest)
	authed.POST("/friends/requests/:requester/decline", h.DeclineFriendRequest)
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, healthText)
}

// RequestLogger logs one line per request and tags it with an id.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if identity := auth.Identity(c); identity != "" {
			attrs = append(attrs, "identity", identity)
		}
		if len(c.Errors) > 0 {
			log.Warn("request failed", append(attrs, "error", c.Errors.String())...)
			return
		}
		log.Debug("request", attrs...)
	}
}

// status maps the error taxonomy to HTTP.
func status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidMessage), errors.Is(err, apperr.ErrSelfRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFriends):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUnknownIdentity):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyConnected),
		errors.Is(err, apperr.ErrIdentityExists),
		errors.Is(err, apperr.ErrNoPendingRequest):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) language(c *gin.Context) string {
	return h.Localizer.Negotiate(c.GetHeader("Accept-Language"), h.lang)
}

// fail writes a coded error with a localized message.
func (h *Handler) fail(c *gin.Context, err error) {
	code := apperr.Code(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status(err), gin.H{
		"code":  code,
		"error": h.Localizer.GetString(h.language(c), code),
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":  apperr.CodeBadRequest,
		"error": h.Localizer.GetString(h.language(c), apperr.CodeBadRequest),
	})
}
