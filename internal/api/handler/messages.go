package handler

import (
	"net/http"

	"raaibar/backend/internal/auth"
	"raaibar/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SendMessage stores a message from the caller and pushes it to the receiver.
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.SendMessagePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	msg, err := h.Messages.Submit(c.Request.Context(), auth.Identity(c), req.Receiver, req.Text, h.Messages.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetHistory returns the caller's conversation with :peer, oldest first.
func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.Messages.History(c.Request.Context(), auth.Identity(c), c.Param("peer"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) SetTyping(c *gin.Context) {
	var req models.TypingPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	delivered := h.Messages.SetTyping(auth.Identity(c), req.Receiver, req.Typing)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
