// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/router"
	agentsfeature "github.com/knockwise/knockwise/internal/app/features/agents"
	assignmentsfeature "github.com/knockwise/knockwise/internal/app/features/assignments"
	healthfeature "github.com/knockwise/knockwise/internal/app/features/health"
	teamsfeature "github.com/knockwise/knockwise/internal/app/features/teams"
	zonesfeature "github.com/knockwise/knockwise/internal/app/features/zones"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/app/system/ratelimit"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// The router comes from WAFFLE with its standard middleware (request id,
// real IP, recovery, body limit, HTTP metrics, access log). /health and
// /metrics are unauthenticated; every other route checks a bearer token
// through the shared verifier. Assignment writes are rate limited per
// client when Startup built a limiter.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Services == nil || deps.Services.Assignments == nil {
		return nil, errors.New("build handler: Startup has not run")
	}
	s := deps.Services
	db := deps.MongoDatabase
	verifier := auth.NewVerifier(appCfg.JWTSecret, logger)

	r := router.New(coreCfg, logger)

	// Unknown routes answer in the API's own error envelope.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, logger, apperr.New(apperr.CodeNotFound, "route not found"))
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, nil, logger)
	if deps.Redis != nil {
		healthHandler.Redis = deps.Redis
	}
	r.Mount("/health", healthfeature.Routes(healthHandler))

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, s.Registry}
	r.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	assignmentsHandler := assignmentsfeature.NewHandler(db, s.Assignments, logger)
	var assignmentsRoutes http.Handler = assignmentsfeature.Routes(assignmentsHandler, verifier)
	if s.WriteLimiter != nil {
		assignmentsRoutes = ratelimit.Writes(s.WriteLimiter, logger)(assignmentsRoutes)
	}
	r.Mount("/assignments", assignmentsRoutes)

	agentsHandler := agentsfeature.NewHandler(db, s.Assignments, logger)
	r.Mount("/agents", agentsfeature.Routes(agentsHandler, verifier))

	teamsHandler := teamsfeature.NewHandler(s.Assignments, logger)
	r.Mount("/teams", teamsfeature.Routes(teamsHandler, verifier))

	zonesHandler := zonesfeature.NewHandler(db, logger)
	r.Mount("/zones", zonesfeature.Routes(zonesHandler, verifier))

	return r, nil
}
