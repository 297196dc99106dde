package handler

import (
	"net/http"

	"raaibar/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

type friendRequest struct {
	To string `json:"to" binding:"required"`
}

func (h *Handler) ListFriends(c *gin.Context) {
	ids, err := h.Friends.ListFriends(c.Request.Context(), auth.Identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": ids})
}

func (h *Handler) ListPendingRequests(c *gin.Context) {
	ids, err := h.Friends.ListPendingRequests(c.Request.Context(), auth.Identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": ids})
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.Friends.SendRequest(c.Request.Context(), auth.Identity(c), req.To); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"to": req.To, "status": "pending"})
}

func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.Identity(c)
	if err := h.Friends.Accept(ctx, me, c.Param("requester")); err != nil {
		h.fail(c, err)
		return
	}
	h.ListFriends(c)
}

func (h *Handler) DeclineFriendRequest(c *gin.Context) {
	if err := h.Friends.Decline(c.Request.Context(), auth.Identity(c), c.Param("requester")); err != nil {
		h.fail(c, err)
		return
	}
	h.ListPendingRequests(c)
}
