package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/auth"
	"raaibar/backend/internal/chathub"
	"raaibar/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients send no Origin; TLS and origin policy sit in front of the service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and binds it to the caller's identity.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity := auth.Identity(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", "identity", identity, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(identity, conn, h.Hub, h, h.log)
	h.Hub.Join(identity, client)
	client.Run()
}

// Dispatch handles a frame read off identity's connection. Failures are
// pushed back as an error event; nothing is returned to the pump.
func (h *Handler) Dispatch(ctx context.Context, identity string, frame models.Frame) {
	switch frame.Name {
	case models.FrameSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.Receiver == "" {
			h.pushError(identity, apperr.CodeBadRequest)
			return
		}
		if _, err := h.Messages.Submit(ctx, identity, p.Receiver, p.Text, h.Messages.Now()); err != nil {
			if !apperr.IsValidation(err) {
				h.log.Warn("send_message frame failed", "identity", identity, "receiver", p.Receiver, "error", err)
			}
			h.pushError(identity, apperr.Code(err))
		}

	case models.FrameTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.Receiver == "" {
			h.pushError(identity, apperr.CodeBadRequest)
			return
		}
		h.Messages.SetTyping(identity, p.Receiver, p.Typing)

	default:
		h.log.Debug("unknown frame", "identity", identity, "frame", frame.Name)
		h.pushError(identity, apperr.CodeBadRequest)
	}
}

func (h *Handler) pushError(identity, code string) {
	h.Hub.Send(identity, models.EventError, models.ErrorNotice{
		Code:    code,
		Message: h.Localizer.GetString(h.lang, code),
	})
}
