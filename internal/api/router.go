package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// identifyTimeout bounds the rig lookup made by the health endpoint.
const identifyTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics/prometheus", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	if s.panel != nil {
		r.Handle("/panel/*", http.StripPrefix("/panel", s.panel))
		r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
		r.Handle("/", http.RedirectHandler("/panel/", http.StatusFound))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/discover", s.handleDiscover)
			r.Get("/{kind}/{id}", s.handleGetDevice)
			r.Get("/{kind}/{id}/history", s.handleDeviceHistory)
			r.Get("/{kind}/{id}/trend", s.handleDeviceTrend)
		})

		r.Get("/plot.png", s.handlePlotImage)
		r.Get("/plot.svg", s.handlePlotImage)
		r.Route("/plot", func(r chi.Router) {
			r.Get("/", s.handleGetPlot)
			r.Post("/start", s.handleStartPlot)
			r.Post("/stop", s.handleStopPlot)
			r.Get("/overview", s.handleOverview)
		})

		r.Route("/control", func(r chi.Router) {
			r.Get("/", s.handleGetControl)
			r.Get("/history", s.handleControlHistory)
			r.Post("/acquire", s.handleAcquireControl)
			r.Post("/set", s.handleSetActuator)
			r.Post("/release", s.handleReleaseControl)
			r.Post("/emergency-stop", s.handleEmergencyStop)
		})

		r.Route("/errorlog", func(r chi.Router) {
			r.Get("/", s.handleGetErrorLog)
			r.Post("/refresh", s.handleRefreshErrorLog)
		})

		r.Route("/pins", func(r chi.Router) {
			r.Get("/", s.handleListPins)
			r.Route("/{type}/{num}", func(r chi.Router) {
				r.Get("/", s.handleReadPin)
				r.Post("/export", s.handleExportPin)
				r.Post("/unexport", s.handleUnexportPin)
				r.Post("/set", s.handleSetPin)
				r.Post("/watch", s.handleWatchPin)
			})
		})

		r.Get("/export", s.handleExport)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the console version and, when the rig answers, its
// identity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.rig != nil {
		ctx, cancel := context.WithTimeout(r.Context(), identifyTimeout)
		defer cancel()
		id, err := s.rig.Identify(ctx)
		if err != nil {
			resp["status"] = "degraded"
			resp["rig"] = map[string]any{"reachable": false, "error": err.Error()}
		} else {
			resp["rig"] = map[string]any{
				"reachable":     true,
				"description":   id.Description,
				"friendly_name": id.FriendlyName,
				"logged_in":     id.LoggedIn,
				"build_date":    id.BuildDate,
				"api_version":   id.APIVersion,
				"running_time":  id.RunningTime,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
