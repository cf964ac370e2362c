//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/migration"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the claim query against a real Postgres, since the
// FOR UPDATE SKIP LOCKED semantics cannot be reproduced by sqlmock. Run
// against a disposable database:
//
//	TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository

func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	migration.RunMigrations(dsn, zerolog.New(os.Stderr))
	_, err = db.Exec(`TRUNCATE delivery_log, notification_queue, notification_templates CASCADE`)
	require.NoError(t, err)
	return db
}

func insertIntegrationTemplate(t *testing.T, db *sql.DB) string {
	t.Helper()
	var id string
	err := db.QueryRow(`
		INSERT INTO notification_templates (name, type, trigger_event, subject_template, body_template)
		VALUES ('claim-test', 'email', 'sla_breach', 's', 'b')
		RETURNING id`).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertIntegrationEntry(t *testing.T, db *sql.DB, templateID string, scheduledAt time.Time) string {
	t.Helper()
	var id string
	err := db.QueryRow(`
		INSERT INTO notification_queue (template_id, recipient_type, recipient_identifier, priority, scheduled_at)
		VALUES ($1, 'email', 'ops@fitdesk.io', 'medium', $2)
		RETURNING id`, templateID, scheduledAt).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestClaimBatch_ConcurrentClaimsAreDisjoint(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := NewQueueRepository(db, testBackoff)
	templateID := insertIntegrationTemplate(t, db)

	const due = 40
	for i := 0; i < due; i++ {
		insertIntegrationEntry(t, db, templateID, time.Now().Add(-time.Minute))
	}

	var (
		mu      sync.Mutex
		claimed []string
		wg      sync.WaitGroup
	)
	for worker := 0; worker < 2; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				entries, err := repo.ClaimBatch(context.Background(), 7)
				if !assert.NoError(t, err) {
					return
				}
				if len(entries) == 0 {
					return
				}
				mu.Lock()
				for _, e := range entries {
					claimed = append(claimed, e.ID)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, due)
	seen := map[string]bool{}
	for _, id := range claimed {
		if seen[id] {
			t.Fatalf("entry %s claimed by more than one batch", id)
		}
		seen[id] = true
	}
}

func TestClaimBatch_FutureEntriesStayPending(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := NewQueueRepository(db, testBackoff)
	templateID := insertIntegrationTemplate(t, db)

	dueID := insertIntegrationEntry(t, db, templateID, time.Now().Add(-time.Minute))
	futureID := insertIntegrationEntry(t, db, templateID, time.Now().Add(time.Hour))

	entries, err := repo.ClaimBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dueID, entries[0].ID)

	future, err := repo.GetByID(context.Background(), futureID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, future.Status)
}
