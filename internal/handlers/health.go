package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/todoapi/internal/handlers/render"
	"github.com/nkiryanov/todoapi/internal/logger"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// Report whether database and cache are reachable
func handleHealth(db pinger, cache pinger, l logger.Logger) http.Handler {
	type response struct {
		Database string `json:"database"`
		Cache    string `json:"cache"`
	}

	status := func(ctx context.Context, p pinger, name string) (string, bool) {
		if err := p.Ping(ctx); err != nil {
			l.Warn("Health check failed", "component", name, "error", err)
			return "down", false
		}
		return "up", true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		dbStatus, dbOK := status(ctx, db, "database")
		cacheStatus, cacheOK := status(ctx, cache, "cache")
		res := response{Database: dbStatus, Cache: cacheStatus}

		if !dbOK || !cacheOK {
			render.JSON(w, render.Response{Success: false, Message: "Service unavailable", Data: res}, http.StatusServiceUnavailable)
			return
		}

		render.Success(w, http.StatusOK, "Service is healthy", res)
	})
}
