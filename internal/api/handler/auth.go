package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// RegisterIdentity creates the identity record and returns a token for it.
// Credentials are verified before this point, outside the service.
func (h *Handler) RegisterIdentity(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.Friends.Register(c.Request.Context(), req.Identity); err != nil {
		h.fail(c, err)
		return
	}

	token, err := h.Auth.Issue(req.Identity)
	if err != nil {
		h.log.Error("failed to create token", "identity", req.Identity, "error", err)
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"identity": req.Identity, "token": token})
}
