package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type healthStatus struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

func healthHandler(pool *pgxpool.Pool, rdb *redis.Client, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{
			Status:   "ok",
			Version:  version,
			Services: map[string]string{},
		}
		code := http.StatusOK

		if err := pool.Ping(ctx); err != nil {
			status.Services["postgres"] = "down"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status.Services["postgres"] = "up"
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			status.Services["redis"] = "down"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status.Services["redis"] = "up"
		}

		writeJSON(w, code, status)
	}
}

func livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
