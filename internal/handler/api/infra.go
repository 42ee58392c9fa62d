package api

import (
	"errors"
	"net/http"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	domrepo "VendorLink/internal/domain/repository"
	"VendorLink/internal/service/ratelimit"
	"VendorLink/internal/usecase"
	xhttp "VendorLink/pkg/http"
	xlogger "VendorLink/pkg/logger"

	"github.com/labstack/echo/v4"
)

const tokenKey = "bearer_token"

// InfraHandler is the receiving side: record stores, legacy intake, the deployment
// registry and heartbeat intake. Every route requires a bearer credential.
type InfraHandler struct {
	logger  *xlogger.Logger
	ingest  *usecase.Ingestor
	tracker *usecase.DeploymentTracker
	limiter *ratelimit.Limiter
	tokens  map[string]struct{}
}

// NewInfraHandler accepts any non-empty bearer when tokens is empty.
func NewInfraHandler(logger *xlogger.Logger, ingest *usecase.Ingestor, tracker *usecase.DeploymentTracker, limiter *ratelimit.Limiter, tokens []string) *InfraHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return &InfraHandler{logger: logger, ingest: ingest, tracker: tracker, limiter: limiter, tokens: set}
}

func (h *InfraHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.authenticate)
	g.POST("/signals/store", h.store(models.TaskSignal))
	g.POST("/consensus/store", h.store(models.TaskConsensus))
	g.POST("/optimizer/store", h.store(models.TaskOptimizer))
	g.POST("/signals/legacy", h.legacy(models.TaskSignal))
	g.POST("/consensus/legacy", h.legacy(models.TaskConsensus))

	m := g.Group("/marketplace")
	m.POST("/deployments", h.RegisterDeployment)
	m.GET("/deployments", h.ListDeployments)
	m.GET("/deployments/:id", h.GetDeployment)
	m.POST("/vendor/heartbeats", h.Heartbeat)
}

func (h *InfraHandler) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := xhttp.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("missing bearer token"))
		}
		if len(h.tokens) > 0 {
			if _, ok := h.tokens[token]; !ok {
				return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("invalid bearer token"))
			}
		}
		if !h.limiter.Allow(token) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		c.Set(tokenKey, token)
		return next(c)
	}
}

func (h *InfraHandler) store(task models.Task) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, ok, err := readPayload(c)
		if !ok {
			return err
		}
		req := c.Request()
		res, verrs, err := h.ingest.Store(req.Context(), task,
			req.Header.Get(contracts.HeaderIdempotencyKey),
			req.Header.Get(contracts.HeaderContractsVersion),
			payload,
		)
		return h.accepted(c, string(task), res, verrs, err)
	}
}

func (h *InfraHandler) legacy(task models.Task) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, ok, err := readPayload(c)
		if !ok {
			return err
		}
		req := c.Request()
		res, verrs, err := h.ingest.StoreLegacy(req.Context(), task, req.Header.Get(contracts.HeaderIdempotencyKey), payload)
		return h.accepted(c, "legacy_"+string(task), res, verrs, err)
	}
}

func (h *InfraHandler) accepted(c echo.Context, kind string, res usecase.IngestResult, verrs contracts.ValidationErrors, err error) error {
	if len(verrs) > 0 {
		h.logger.Debug("batch rejected", xlogger.String("kind", kind), xlogger.Int("errors", len(verrs)))
		return validationFailed(c, verrs)
	}
	if err != nil {
		h.logger.Error("ingest error", xlogger.String("kind", kind), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("store unavailable").WithError(err))
	}
	if res.Replay {
		c.Response().Header().Set(contracts.HeaderIdempotentReplay, "true")
	}
	if res.FanoutFailed {
		c.Response().Header().Set(contracts.HeaderFanoutFailed, "true")
	}
	return xhttp.NoContentResponse(c)
}

func (h *InfraHandler) RegisterDeployment(c echo.Context) error {
	req := &models.DeploymentRegistration{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, err := h.tracker.Register(c.Request().Context(), *req)
	if err != nil {
		return h.deploymentError(c, "register deployment", err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *InfraHandler) ListDeployments(c echo.Context) error {
	list, err := h.tracker.List(c.Request().Context())
	if err != nil {
		return h.deploymentError(c, "list deployments", err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *InfraHandler) GetDeployment(c echo.Context) error {
	d, err := h.tracker.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.deploymentError(c, "get deployment", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *InfraHandler) Heartbeat(c echo.Context) error {
	payload, ok, err := readPayload(c)
	if !ok {
		return err
	}
	hb, verrs := contracts.ValidateHeartbeat(payload)
	if len(verrs) > 0 {
		return validationFailed(c, verrs)
	}

	d, _, err := h.tracker.Apply(c.Request().Context(), hb)
	if err != nil {
		return h.deploymentError(c, "apply heartbeat", err)
	}
	return c.JSON(http.StatusOK, d)
}

// deploymentError maps registry failures onto AppErrors. Unexpected ones are logged as 500s.
func (h *InfraHandler) deploymentError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, domrepo.ErrDeploymentNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("deployment not found"))
	case errors.Is(err, domrepo.ErrDeploymentExists):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("id", "deployment already exists"))
	}
	h.logger.Error(op, xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("deployment registry unavailable").WithError(err))
}
