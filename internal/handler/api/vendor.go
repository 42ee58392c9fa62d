package api

import (
	"errors"
	"net/http"
	"time"

	"VendorLink/internal/usecase"
	xhttp "VendorLink/pkg/http"
	xlogger "VendorLink/pkg/logger"
	"VendorLink/pkg/util"

	"github.com/labstack/echo/v4"
)

// VendorIdentity is echoed by /health.
type VendorIdentity struct {
	Version      string
	DeploymentID string
	VendorID     string
}

// VendorHandler serves the model process: health, readiness and inference.
type VendorHandler struct {
	logger    *xlogger.Logger
	svc       *usecase.InferenceService
	id        VendorIdentity
	startupMs int64
	now       func() time.Time
}

// NewVendorHandler records startup time as the time since started.
func NewVendorHandler(logger *xlogger.Logger, svc *usecase.InferenceService, id VendorIdentity, started time.Time) *VendorHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &VendorHandler{
		logger:    logger,
		svc:       svc,
		id:        id,
		startupMs: time.Since(started).Milliseconds(),
		now:       time.Now,
	}
}

func (h *VendorHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.POST("/infer", h.Infer)
}

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Timestamp    string `json:"timestamp"`
	DeploymentID string `json:"deployment_id,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
}

type readyResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	StartupTimeMs int64  `json:"startup_time_ms"`
}

func (h *VendorHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:       "ok",
		Version:      h.id.Version,
		Timestamp:    util.FormatISO(h.now()),
		DeploymentID: h.id.DeploymentID,
		VendorID:     h.id.VendorID,
	})
}

func (h *VendorHandler) Ready(c echo.Context) error {
	return c.JSON(http.StatusOK, readyResponse{
		Status:        "ready",
		ModelLoaded:   h.svc != nil,
		StartupTimeMs: h.startupMs,
	})
}

func (h *VendorHandler) Infer(c echo.Context) error {
	payload, ok, err := readPayload(c)
	if !ok {
		return err
	}

	rec, verrs, err := h.svc.Infer(c.Request().Context(), payload)
	if len(verrs) > 0 {
		return validationFailed(c, verrs)
	}
	if err != nil {
		h.logger.Error("inference error", xlogger.String("task", string(h.svc.Task())), xlogger.Error(err))
		if errors.Is(err, usecase.ErrModelOutput) {
			return xhttp.ContractErrorResponse(c, http.StatusInternalServerError, "model produced an invalid record", nil)
		}
		return xhttp.ContractErrorResponse(c, http.StatusInternalServerError, "inference failed", nil)
	}
	return c.JSON(http.StatusOK, rec)
}
