package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lambda-feedback/tether/runtime/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidMethod    = errors.New("invalid method")
	ErrRouteNotFound    = errors.New("route not found")
	ErrSchemaNotFound   = errors.New("schema not found")
	ErrValidationFailed = errors.New("validation failed")
)

const (
	// CommandPath accepts commands for the worker.
	CommandPath = "/command"

	// HealthPath reports the state of the worker session.
	HealthPath = "/health"
)

// HandlerParams defines the dependencies for the runtime handler.
type HandlerParams struct {
	fx.In

	Runtime Runtime

	Log *zap.Logger
}

// Handler is the interface for handling runtime requests.
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}

// RuntimeHandler is a runtime handler that uses a runtime to handle requests.
type RuntimeHandler struct {
	runtime Runtime

	schemas map[validationType]*schema.Schema

	log *zap.Logger
}

// NewRuntimeHandler creates a new runtime handler.
func NewRuntimeHandler(params HandlerParams) (Handler, error) {
	requestSchema, err := schema.NewRequestSchema()
	if err != nil {
		return nil, err
	}

	responseSchema, err := schema.NewResponseSchema()
	if err != nil {
		return nil, err
	}

	schemas := map[validationType]*schema.Schema{
		validationTypeRequest:  requestSchema,
		validationTypeResponse: responseSchema,
	}

	return &RuntimeHandler{
		runtime: params.Runtime,
		schemas: schemas,
		log:     params.Log.Named("handler"),
	}, nil
}

// Handle handles a runtime request.
func (h *RuntimeHandler) Handle(ctx context.Context, req Request) Response {
	log := h.log.With(
		zap.String("path", req.Path),
		zap.String("method", req.Method),
	)

	switch strings.TrimSuffix(req.Path, "/") {
	case CommandPath:
		return h.handleCommand(ctx, req, log)
	case HealthPath:
		return h.handleHealth(req, log)
	default:
		log.Debug("route not found")
		return newErrorResponse(ErrRouteNotFound)
	}
}

func (h *RuntimeHandler) handleCommand(ctx context.Context, req Request, log *zap.Logger) Response {
	if req.Method != http.MethodPost {
		log.Debug("invalid method")
		return newErrorResponse(ErrInvalidMethod)
	}

	// Validate the request data against the request schema
	if err := h.validate(validationTypeRequest, req.Body); err != nil {
		return newErrorResponse(err)
	}

	var request CommandRequest
	if err := json.Unmarshal(req.Body, &request); err != nil {
		log.Debug("failed to decode request", zap.Error(err))
		return newErrorResponse(ErrValidationFailed)
	}

	log = log.With(zap.String("command", request.Command))

	// Let the runtime pass the command to the worker
	response, err := h.runtime.Handle(ctx, request)
	if err != nil {
		log.Debug("failed to handle command", zap.Error(err))
		return newErrorResponse(err)
	}

	body, err := json.Marshal(response)
	if err != nil {
		log.Error("failed to encode response", zap.Error(err))
		return newErrorResponse(err)
	}

	// Validate the response data against the response schema
	if err := h.validate(validationTypeResponse, body); err != nil {
		return newErrorResponse(err)
	}

	return newResponse(http.StatusOK, body)
}

func (h *RuntimeHandler) handleHealth(req Request, log *zap.Logger) Response {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		log.Debug("invalid method")
		return newErrorResponse(ErrInvalidMethod)
	}

	status := h.runtime.Status()

	body, err := json.Marshal(status)
	if err != nil {
		log.Error("failed to encode status", zap.Error(err))
		return newErrorResponse(err)
	}

	if !status.Healthy() {
		return newResponse(http.StatusServiceUnavailable, body)
	}

	return newResponse(http.StatusOK, body)
}
