package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/tabletally/tabletally-backend/api/responses"
	"github.com/tabletally/tabletally-backend/pkg/config"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TableTally-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing dependency answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, pubsub pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"db":     db,
		"redis":  redis,
		"pubsub": pubsub,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TableTally-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses := map[string]string{}
		for name, dep := range checks {
			if dep == nil {
				statuses[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				statuses[name] = "down"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").WithDetails(statuses))
				return
			}
			statuses[name] = "up"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": statuses})
	}
}
