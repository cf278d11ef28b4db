package handler

import (
	"github.com/lambda-feedback/tether/internal/server"
	"github.com/lambda-feedback/tether/runtime"
)

func NewCommandRoute(handler *CommandHandler) server.HttpHandlerResult {
	return server.AsHttpHandler(runtime.CommandPath, handler)
}

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler(runtime.HealthPath, handler)
}
