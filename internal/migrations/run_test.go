package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/cleancut/internal/storage/pgtest"
)

func getTestDB(t *testing.T) *sql.DB {
	dsn := pgtest.Start(t)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	db := getTestDB(t)

	err := Run(db, pgtest.MigrationsPath(t))
	require.NoError(t, err)

	require.True(t, tableExists(t, db, "credit_ledgers"), "Table 'credit_ledgers' should exist")
	require.True(t, tableExists(t, db, "usage_events"), "Table 'usage_events' should exist")

	var exists bool
	err = db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'usage_events'
			AND indexname = 'idx_usage_events_account_created'
		)
	`).Scan(&exists)
	require.NoError(t, err)
	require.True(t, exists, "Index should exist")

	var imagesType string
	err = db.QueryRow(`
		SELECT data_type FROM information_schema.columns
		WHERE table_name = 'usage_events' AND column_name = 'images_count'
	`).Scan(&imagesType)
	require.NoError(t, err)
	require.Equal(t, "bigint", imagesType, "images_count must hold counts above 2^31")

	_, err = db.Exec(`INSERT INTO credit_ledgers (account_id, credits_remaining) VALUES ('neg', -1)`)
	require.Error(t, err, "negative balance must violate the check constraint")

	_, err = db.Exec(`INSERT INTO credit_ledgers (account_id, plan_id) VALUES ('bad-plan', 'enterprise')`)
	require.Error(t, err, "unknown plan must violate the check constraint")
}

func TestMigrationIdempotency(t *testing.T) {
	db := getTestDB(t)
	path := pgtest.MigrationsPath(t)

	require.NoError(t, Run(db, path))
	require.NoError(t, Run(db, path), "Running migrations twice should not fail")

	require.True(t, tableExists(t, db, "credit_ledgers"))
}
