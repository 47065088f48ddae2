package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expense-guard/internal/auth"
	"expense-guard/internal/handlers"
	"expense-guard/internal/ledger"
	"expense-guard/internal/log"
	"expense-guard/internal/mail"
	"expense-guard/internal/models"
	"expense-guard/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	// Setup dependencies
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	defer db.Close()

	sender, err := mail.NewDropSender(t.TempDir(), "")
	require.NoError(t, err)

	logger := log.Discard()
	h := handlers.NewHandlers(db,
		auth.NewService(db, sender, logger, auth.Options{}),
		ledger.NewService(db, logger, time.Second, nil),
		logger,
		handlers.Options{DefaultBudget: decimal.NewFromInt(5000)},
	)

	// Create router - this triggers the panic if routing conflict exists
	mux := log.Middleware(logger)(setupRouter(h))

	// Verify routes
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"Health check", "GET", "/healthz", http.StatusOK},
		{"Me requires auth", "GET", "/api/me", http.StatusUnauthorized},
		{"List Expenses requires auth", "GET", "/api/expenses", http.StatusUnauthorized},
		{"Export requires auth", "GET", "/api/expenses/export.csv", http.StatusUnauthorized},
		{"Month purge requires auth", "DELETE", "/api/expenses/current-month", http.StatusUnauthorized},
		{"Single expense requires auth", "PUT", "/api/expenses/1", http.StatusUnauthorized},
		{"Reports require auth", "GET", "/api/reports/daily", http.StatusUnauthorized},
		{"Budget requires auth", "PUT", "/api/settings/budget", http.StatusUnauthorized},
		{"Logout without session", "POST", "/api/auth/logout", http.StatusNoContent},
		{"Wrong method", "GET", "/api/auth/verify", http.StatusMethodNotAllowed},
		{"Unknown path", "GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code,
				"%s %s returned unexpected status", tt.method, tt.path)
			assert.NotEmpty(t, w.Header().Get(log.RequestIDHeader))
		})
	}
}

func TestCleanupRemovesExpiredRows(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	user, err := db.ResolveUser(ctx, "user@example.com", now)
	require.NoError(t, err)
	for token, expires := range map[string]time.Time{"old": now.Add(-time.Minute), "live": now.Add(time.Hour)} {
		require.NoError(t, db.CreateSession(ctx, &models.Session{
			Token: token, UserID: user.ID, Budget: decimal.Zero, ExpiresAt: expires, LastActivity: now,
		}))
	}
	_, err = db.ReplaceChallenge(ctx, "stale@example.com", "hash", now.Add(-auth.ChallengeTTL-time.Minute))
	require.NoError(t, err)
	_, err = db.ReplaceChallenge(ctx, "fresh@example.com", "hash", now)
	require.NoError(t, err)

	cleanup(ctx, db, now, log.Discard())

	_, err = db.ValidateSession(ctx, "old", now.Add(-time.Hour))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = db.ValidateSession(ctx, "live", now)
	assert.NoError(t, err)

	stale, err := db.ChallengeCount(ctx, "stale@example.com")
	require.NoError(t, err)
	assert.Zero(t, stale)
	fresh, err := db.ChallengeCount(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh)
}

func TestCleanupLoopStopsOnCancel(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleanupLoop(ctx, db, 10*time.Millisecond, log.Discard())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
