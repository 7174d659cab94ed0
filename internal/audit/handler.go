package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/server/respond"
)

const adminRole = "admin"

type Handler struct {
	Repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit/events", h.list)
}

// list returns the caller's own events; admins see everyone's.
func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}
	var f Filter
	if !strings.EqualFold(middleware.RoleFromContext(c), adminRole) {
		f.UserID = userID
	}
	if raw := strings.TrimSpace(c.Query("tenderId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respond.Invalid(c, "invalid tenderId", nil)
			return
		}
		f.TenderID = id
		c.Set("tenderId", id)
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Invalid(c, "invalid limit", nil)
			return
		}
		f.Limit = n
	}

	events, err := h.Repo.List(c.Request.Context(), f)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list events", nil)
		return
	}
	if events == nil {
		events = []Event{}
	}
	respond.OK(c, gin.H{"events": events})
}
