package workflow

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/server/respond"
	"tender-evaluator/internal/tenderapi"
)

// Handler exposes controller intents as JSON endpoints. Every response carries
// the state snapshot and the notices drained since the previous call.
type Handler struct {
	Registry *Registry
}

// NewHandler constructs a Handler.
func NewHandler(reg *Registry) *Handler {
	return &Handler{Registry: reg}
}

// RegisterRoutes attaches workflow routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	wf := rg.Group("/workflow")
	wf.GET("", h.getState)
	wf.POST("/tenders/load", h.loadTenders)
	wf.POST("/criteria/load", h.loadCriteria)
	wf.POST("/tenders/:id/select", h.selectTender)
	wf.POST("/vendors/:id/toggle", h.toggleVendor)
	wf.POST("/vendors/select-available", h.selectAvailable)
	wf.POST("/vendors/reopen", h.reopenVendors)
	wf.POST("/criteria/:id/toggle", h.toggleCriterion)
	wf.POST("/criteria/select-all", h.selectAllCriteria)
	wf.POST("/extraction", h.proceedToExtraction)
	wf.POST("/documents/:id/ocr", h.runOCR)
	wf.POST("/ocr/pending", h.runPendingOCR)
	wf.POST("/evaluation", h.runEvaluation)
	wf.POST("/export", h.export)
	wf.POST("/reset", h.reset)
}

type snapshotResponse struct {
	State   State    `json:"state"`
	Notices []Notice `json:"notices"`
}

func (h *Handler) controller(c *gin.Context) (*Controller, bool) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return nil, false
	}
	ctrl, err := h.Registry.Get(userID, middleware.BearerTokenFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open workflow session", nil)
		return nil, false
	}
	return ctrl, true
}

// background detaches work from the request so it survives the response.
func (h *Handler) background() context.Context {
	return h.Registry.Background()
}

func (h *Handler) render(c *gin.Context, ctrl *Controller, status int, err error) {
	if err != nil && !errors.Is(err, ErrRejected) {
		if tenderapi.IsUnauthorized(err) {
			respond.Error(c, http.StatusUnauthorized, "upstream_unauthorized", "tender backend rejected the session token", nil)
			return
		}
		// Upstream failures are reported to the user as notices.
		c.Set("upstreamError", err.Error())
	}
	if errors.Is(err, ErrRejected) {
		status = http.StatusOK
	}
	respond.JSON(c, status, snapshotResponse{State: ctrl.Snapshot(), Notices: ctrl.DrainNotices()})
}

func parseID(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Invalid(c, key+" must be a positive integer", nil)
		return 0, false
	}
	c.Set(key, id)
	return id, true
}

func (h *Handler) getState(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, nil)
}

func (h *Handler) loadTenders(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.LoadTenders(c.Request.Context()))
}

func (h *Handler) loadCriteria(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.LoadCriteria(c.Request.Context()))
}

func (h *Handler) selectTender(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "tenderId")
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.SelectTender(c.Request.Context(), id))
}

func (h *Handler) toggleVendor(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "vendorId")
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.ToggleVendor(id))
}

func (h *Handler) selectAvailable(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.SelectAllAvailable())
}

func (h *Handler) reopenVendors(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.BackToVendorSelection())
}

func (h *Handler) toggleCriterion(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "criterionId")
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.ToggleCriterion(id))
}

func (h *Handler) selectAllCriteria(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.SelectAllCriteria())
}

func (h *Handler) proceedToExtraction(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, ctrl, http.StatusOK, ctrl.ProceedToExtraction(c.Request.Context()))
}

func (h *Handler) runOCR(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "documentId")
	if !ok {
		return
	}
	_, err := ctrl.StartOCR(h.background(), id)
	h.render(c, ctrl, http.StatusAccepted, err)
}

func (h *Handler) runPendingOCR(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	_, err := ctrl.StartOCRForAllPending(h.background())
	h.render(c, ctrl, http.StatusAccepted, err)
}

type evaluationRequest struct {
	TenderID    int64   `json:"tenderId"`
	VendorIDs   []int64 `json:"vendorIds"`
	CriteriaIDs []int64 `json:"criteriaIds"`
}

func (h *Handler) runEvaluation(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	in := ctrl.SelectionInput()
	if c.Request.ContentLength > 0 {
		var req evaluationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Invalid(c, "invalid evaluation request", nil)
			return
		}
		if req.TenderID != 0 {
			in.TenderID = req.TenderID
		}
		if req.VendorIDs != nil {
			in.VendorIDs = req.VendorIDs
		}
		if req.CriteriaIDs != nil {
			in.CriteriaIDs = req.CriteriaIDs
		}
	}
	c.Set("tenderId", in.TenderID)
	h.render(c, ctrl, http.StatusAccepted, ctrl.StartEvaluation(h.background(), in))
}

type exportRequest struct {
	Format string `json:"format"`
}

func (h *Handler) export(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Invalid(c, "invalid export request", nil)
			return
		}
	}
	_, err := ctrl.ExportResults(c.Request.Context(), req.Format)
	h.render(c, ctrl, http.StatusOK, err)
}

func (h *Handler) reset(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.ResetEvaluation()
	h.render(c, ctrl, http.StatusOK, nil)
}
