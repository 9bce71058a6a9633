package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/app/system/locks"
	"github.com/knockwise/knockwise/internal/domain/models"
	"github.com/knockwise/knockwise/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// startTestServices runs the schema and Startup hooks against a test
// database the way WAFFLE would after ConnectDB.
func startTestServices(t *testing.T, cfg AppConfig) DBDeps {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, Services: &Services{}}
	if err := EnsureSchema(ctx, validCoreConfig(), cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)
	if err := Startup(runCtx, validCoreConfig(), cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	return deps
}

func TestStartup_RequiresServices(t *testing.T) {
	err := Startup(context.Background(), validCoreConfig(), validConfig(), DBDeps{}, testLogger())
	if err == nil {
		t.Fatal("expected an error without ConnectDB's Services")
	}
}

func TestStartup_UsesLocalLocksWithoutRedis(t *testing.T) {
	deps := startTestServices(t, validConfig())
	s := deps.Services

	if _, ok := s.ActivationLock.(*locks.LocalLock); !ok {
		t.Errorf("activation lock: got %T", s.ActivationLock)
	}
	if _, ok := s.ReconcileLock.(*locks.LocalLock); !ok {
		t.Errorf("reconcile lock: got %T", s.ReconcileLock)
	}
	if s.WriteLimiter != nil {
		t.Error("write_rate_limit 0 should not build a limiter")
	}
}

func TestLifecycle_OnReadyAndShutdown(t *testing.T) {
	deps := startTestServices(t, validConfig())

	OnReady(validCoreConfig(), validConfig(), deps, testLogger())

	ctx, cancel := testutil.TestContext()
	defer cancel()
	// Only the scheduler is stopped here; the test database owns the client.
	jobsOnly := DBDeps{Services: deps.Services}
	if err := Shutdown(ctx, validCoreConfig(), validConfig(), jobsOnly, testLogger()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestBuildHandler_RequiresStartup(t *testing.T) {
	if _, err := BuildHandler(validCoreConfig(), validConfig(), DBDeps{Services: &Services{}}, testLogger()); err == nil {
		t.Fatal("expected an error before Startup")
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	deps := startTestServices(t, validConfig())
	s := deps.Services
	handler, err := BuildHandler(validCoreConfig(), validConfig(), deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := s.Scheduler.RunOnce(ctx, s.Activator, s.ActivationLock); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	token, err := auth.MintToken(validConfig().JWTSecret, primitive.NewObjectID().Hex(), models.RoleSuperAdmin, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		status   int
		contains string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, `"database":"connected"`},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK, "knockwise_job_success_total"},
		{"assignments need a token", http.MethodGet, "/assignments", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"assignments list", http.MethodGet, "/assignments", token, http.StatusOK, `"items":[]`},
		{"zones need a token", http.MethodGet, "/zones/near?lng=1&lat=1", "", http.StatusUnauthorized, ""},
		{"team status", http.MethodGet, "/teams/" + primitive.NewObjectID().Hex() + "/status", token, http.StatusNotFound, "NOT_FOUND"},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q: %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestBuildHandler_WriteLimit(t *testing.T) {
	cfg := validConfig()
	cfg.WriteRateLimit = 1
	deps := startTestServices(t, cfg)
	handler, err := BuildHandler(validCoreConfig(), cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	token, err := auth.MintToken(cfg.JWTSecret, primitive.NewObjectID().Hex(), models.RoleSuperAdmin, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/assignments", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.RemoteAddr = "198.51.100.7:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusBadRequest {
		t.Fatalf("first write: got %d (%s)", rec.Code, rec.Body.String())
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}
