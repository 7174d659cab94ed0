package sessions

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/server/respond"
	"tender-evaluator/internal/tenderapi"
)

// Dropper releases per-user state when a user logs out.
type Dropper interface {
	Drop(userID string)
}

type Handler struct {
	Service  *Service
	OnLogout Dropper
}

func NewHandler(svc *Service, onLogout Dropper) *Handler {
	return &Handler{Service: svc, OnLogout: onLogout}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/logout", h.logout)
	rg.GET("/auth/me", h.me)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	Role        string `json:"role,omitempty"`
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "username and password are required", nil)
		return
	}
	sess, err := h.Service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid username or password", nil)
		case tenderapi.IsTransient(err):
			respond.Error(c, http.StatusBadGateway, "upstream_unavailable", "tender backend unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "login failed", nil)
		}
		return
	}
	respond.OK(c, loginResponse{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Role:        sess.Role,
		AccessToken: sess.Token,
		ExpiresAt:   sess.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.Service.Logout(c.Request.Context(), middleware.SessionIDFromContext(c)); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "logout failed", nil)
		return
	}
	if h.OnLogout != nil {
		h.OnLogout.Drop(middleware.UserIDFromContext(c))
	}
	respond.NoContent(c)
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	if c.Query("verify") == "true" {
		if err := h.Service.Verify(c.Request.Context(), middleware.BearerTokenFromContext(c)); err != nil {
			if tenderapi.IsUnauthorized(err) {
				respond.Error(c, http.StatusUnauthorized, "upstream_unauthorized", "tender backend rejected the token", nil)
				return
			}
			respond.Error(c, http.StatusBadGateway, "upstream_unavailable", "could not verify token", nil)
			return
		}
	}
	response := gin.H{"userId": userID}
	if role := middleware.RoleFromContext(c); role != "" {
		response["role"] = role
	}
	if sid := middleware.SessionIDFromContext(c); sid != "" {
		response["sessionId"] = sid
	}
	respond.OK(c, response)
}
