package handler

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/runtime"
)

type CommandHandlerParams struct {
	fx.In

	Handler runtime.Handler
	Config  config.Config
	Log     *zap.Logger
}

func NewCommandHandler(params CommandHandlerParams) *CommandHandler {
	return &CommandHandler{
		handler: params.Handler,
		key:     params.Config.Auth.Key,
		log:     params.Log,
	}
}

// NewHealthHandler returns a handler that does not require the api
// key, so probes can reach it.
func NewHealthHandler(params CommandHandlerParams) *HealthHandler {
	return &HealthHandler{
		CommandHandler{
			handler: params.Handler,
			log:     params.Log,
		},
	}
}

// CommandHandler adapts a runtime.Handler to net/http. If key is set,
// requests must carry it in the api-key header.
type CommandHandler struct {
	handler runtime.Handler
	key     string
	log     *zap.Logger
}

type HealthHandler struct {
	CommandHandler
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	// Check for authorization
	if h.key != "" && !h.authorized(r) {
		log.Debug("unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	request := runtime.Request{
		Path:   r.URL.Path,
		Method: strings.ToUpper(r.Method),
		Header: r.Header,
		Body:   body,
	}

	// Handle the request
	response := h.handler.Handle(r.Context(), request)

	// Map response headers
	for k, v := range response.Header {
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}

	// Write response headers and status code
	w.WriteHeader(response.StatusCode)

	// Write response body
	if _, err := w.Write(response.Body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}

func (h *CommandHandler) authorized(r *http.Request) bool {
	key := r.Header.Get("api-key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.key)) == 1
}
