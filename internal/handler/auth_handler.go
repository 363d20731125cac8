package handler

import (
	"net/http"

	"filepulse/internal/services"
	"filepulse/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login issues a token for any supplied username. Demo-grade identity: the
// interesting boundary is token verification on upload/delete, not issuance.
func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	_ = c.ShouldBindJSON(&req)
	if req.Username == "" {
		req.Username = "demo"
	}

	token, err := h.auth.IssueToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.LoginResponse{Token: token}))
}
