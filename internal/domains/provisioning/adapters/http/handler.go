// Package http exposes the provisioning flow as a small JSON API driven by
// the client one step at a time.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/http/mapper"
	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
	sharederrors "github.com/mmesim/provisioning-api/internal/shared/errors"
)

// Handler serves the flow endpoints. Payment goes through the verification
// orchestrator so the post-payment continuation starts with the step itself.
type Handler struct {
	service   ports.Service
	resolver  ports.VerificationOrchestrator
	responder *sharederrors.ChainedResponder
}

// NewHandler wires the service and verification orchestrator into the API surface.
func NewHandler(service ports.Service, resolver ports.VerificationOrchestrator) *Handler {
	return &Handler{
		service:   service,
		resolver:  resolver,
		responder: sharederrors.NewChainedResponder("", mapStepError, mapNotFound),
	}
}

// RegisterRoutes mounts the flow API under /v1.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1")
	flows := v1.Group("/flows")
	flows.POST("", h.startFlow)
	flows.GET("/:flowId", h.getFlow)
	flows.DELETE("/:flowId", h.abandonFlow)
	flows.POST("/:flowId/phone", h.submitPhone)
	flows.POST("/:flowId/device", h.submitDevice)
	flows.POST("/:flowId/register", h.registerOrder)
	flows.POST("/:flowId/payment", h.submitPayment)
}

func (h *Handler) startFlow(c *gin.Context) {
	var req mapper.StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, "invalid request body")
		return
	}
	snapshot, err := h.service.StartFlow(c.Request.Context(), mapper.ToStartFlowInput(req))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.FromSnapshot(snapshot))
}

func (h *Handler) getFlow(c *gin.Context) {
	snapshot, err := h.service.GetFlow(c.Request.Context(), flowIdentifier(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSnapshot(snapshot))
}

func (h *Handler) abandonFlow(c *gin.Context) {
	identifier := flowIdentifier(c)
	if h.resolver != nil {
		if err := h.resolver.Cancel(c.Request.Context(), identifier.FlowID); err != nil {
			h.responder.RespondError(c, err)
			return
		}
	}
	if err := h.service.AbandonFlow(c.Request.Context(), identifier); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) submitPhone(c *gin.Context) {
	var req mapper.PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, "invalid request body")
		return
	}
	snapshot, err := h.service.SubmitPhone(c.Request.Context(), mapper.ToPhoneInput(flowID(c), req))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSnapshot(snapshot))
}

func (h *Handler) submitDevice(c *gin.Context) {
	var req mapper.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, "invalid request body")
		return
	}
	snapshot, err := h.service.SubmitDevice(c.Request.Context(), mapper.ToDeviceInput(flowID(c), req))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSnapshot(snapshot))
}

func (h *Handler) registerOrder(c *gin.Context) {
	snapshot, err := h.service.RegisterOrder(c.Request.Context(), provtypes.RegisterInput{FlowID: flowID(c)})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSnapshot(snapshot))
}

func (h *Handler) submitPayment(c *gin.Context) {
	var req mapper.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, "invalid request body")
		return
	}
	input, err := mapper.ToPaymentInput(flowID(c), req)
	if err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	// Payment goes through the resolver so the verification continuation is
	// scheduled together with the step itself.
	snapshot, err := h.resolver.SubmitPayment(c.Request.Context(), input)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	// 202: the verification continues asynchronously; clients poll GetFlow.
	c.JSON(http.StatusAccepted, mapper.FromSnapshot(snapshot))
}

func flowID(c *gin.Context) string {
	return c.Param("flowId")
}

func flowIdentifier(c *gin.Context) provtypes.FlowIdentifier {
	return provtypes.FlowIdentifier{FlowID: flowID(c)}
}

// mapStepError translates workflow step failures into problem responses:
// input mistakes are the client's to fix, service rejections carry the
// backend's message, transport faults surface as gateway errors, and
// anything terminal conflicts with further steps.
func mapStepError(err error) (sharederrors.ProblemDetail, bool) {
	stepErr, ok := domain.AsStepError(err)
	if !ok {
		return sharederrors.ProblemDetail{}, false
	}
	var problem sharederrors.ProblemDetail
	switch stepErr.Kind {
	case domain.ErrorValidation:
		problem = sharederrors.ErrValidation
	case domain.ErrorRejected:
		problem = sharederrors.ErrUnprocessable
	case domain.ErrorTransport:
		problem = sharederrors.ErrBadGateway
	default:
		problem = sharederrors.ErrConflict
	}
	problem = problem.WithDetail(stepErr.Message).
		WithExtension("kind", string(stepErr.Kind))
	if stepErr.Step != "" {
		problem = problem.WithExtension("step", stepErr.Step)
	}
	return problem, true
}

func mapNotFound(err error) (sharederrors.ProblemDetail, bool) {
	if errors.Is(err, ports.ErrNotFound) {
		return sharederrors.ErrNotFound.WithDetail("flow not found"), true
	}
	return sharederrors.ProblemDetail{}, false
}
