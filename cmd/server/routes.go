package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aigateway/aigateway/internal/api"
	"github.com/aigateway/aigateway/internal/config"
)

// registerRoutes wires every provider namespace onto the mux. Each namespace
// exposes the same OpenAI-compatible surface backed by its own provider.
func registerRoutes(mux *http.ServeMux, handler *api.Handler, backends []api.Backend, cfg *config.Config) {
	for _, b := range backends {
		ns := namespacePrefix(b.Name)
		mux.HandleFunc("POST "+ns+"/chat/completions", handler.ChatCompletions(b))
		mux.HandleFunc("GET "+ns+"/models", handler.ListModels(b))
		mux.HandleFunc("POST "+ns+"/embeddings", handler.CreateEmbeddings(b))
	}

	mux.HandleFunc("GET /healthz", handler.Healthz())

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}
}

// namespacePrefix maps a provider name to its URL namespace. The custom
// provider owns the bare /v1 namespace; everything else is nested under its
// own name.
func namespacePrefix(name string) string {
	if name == "custom" {
		return "/v1"
	}
	return "/" + name + "/v1"
}
