package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/auth"
	"github.com/fileflow/fileflow-server/internal/config"
	"github.com/fileflow/fileflow-server/internal/core"
	"github.com/fileflow/fileflow-server/internal/service/files"
	"github.com/fileflow/fileflow-server/internal/service/friends"
	"github.com/fileflow/fileflow-server/internal/store"
	"github.com/fileflow/fileflow-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	engine      *core.Engine
}

// startTestServer wires a full server around an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret")
	disabledLogger := zerolog.New(nil)

	bridge := core.NewStoreBridge(st)
	engine := core.NewEngine(core.NewRegistry(), bridge, bridge, bridge, &disabledLogger)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.UploadDir = t.TempDir()

	server := NewServer(Deps{
		Engine:        engine,
		AuthService:   authService,
		FriendService: friends.New(st),
		FileService:   files.New(st, cfg.UploadDir, cfg.MaxUploadSize),
		Store:         st,
		Config:        cfg,
		Log:           &disabledLogger,
	})

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:          ts,
		store:       st,
		authService: authService,
		engine:      engine,
	}
}
