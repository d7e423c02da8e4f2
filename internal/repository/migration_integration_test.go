//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/testutil"
)

// newMigrationTestEnv drops the schema and replays every migration.
func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	testutil.LockDB(t, ctx, pool)
	require.NoError(t, testutil.DropPublicSchema(ctx, pool))

	version, err := Migrate(dbURL)
	require.NoError(t, err)
	require.EqualValues(t, 8, version)

	return ctx, pool, dbURL
}

// publicColumns returns table -> column set for the public schema.
func publicColumns(ctx context.Context, t *testing.T, pool *pgxpool.Pool) map[string]map[string]bool {
	t.Helper()

	rows, err := pool.Query(ctx, `
		SELECT table_name::text, column_name::text
		FROM information_schema.columns
		WHERE table_schema = 'public'`)
	require.NoError(t, err)

	type col struct{ Table, Column string }
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[col])
	require.NoError(t, err)

	out := make(map[string]map[string]bool)
	for _, c := range cols {
		if out[c.Table] == nil {
			out[c.Table] = make(map[string]bool)
		}
		out[c.Table][c.Column] = true
	}
	return out
}

func TestIntegrationMigration_Schema(t *testing.T) {
	ctx, pool, _ := newMigrationTestEnv(t)
	schema := publicColumns(ctx, t, pool)

	want := map[string][]string{
		"users":              {"id", "email", "password_hash", "role", "plan", "banned"},
		"refresh_tokens":     {"id", "user_id", "expires_at"},
		"profiles":           {"user_id", "full_name", "gender", "preferred_gender", "date_of_birth", "languages", "images", "hide_from_free_users", "is_complete", "boosted_until"},
		"profile_views":      {"id", "viewer_id", "viewed_id"},
		"interests":          {"id", "from_user_id", "to_user_id", "status"},
		"matches":            {"id", "user1_id", "user2_id", "conversation_id"},
		"shortlists":         {"user_id"},
		"messages":           {"id", "conversation_id"},
		"usage_counters":     {"user_id"},
		"usage_events":       {"user_id"},
		"quick_pick_actions": {"user_id"},
		"blocks":             {"blocker_id", "blocked_id"},
		"reports":            {"id", "status"},
		"device_tokens":      {"user_id"},
		"notifications":      {"id", "user_id"},
	}

	for table, columns := range want {
		t.Run(table, func(t *testing.T) {
			require.Contains(t, schema, table)
			for _, c := range columns {
				assert.True(t, schema[table][c], "%s.%s missing", table, c)
			}
		})
	}
}

func TestIntegrationMigration_MatchPairIsOrdered(t *testing.T) {
	ctx, pool, _ := newMigrationTestEnv(t)

	_, err := pool.Exec(ctx, `INSERT INTO users (id, email, password_hash) VALUES ('b', 'b@x', 'h'), ('a', 'a@x', 'h')`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO matches (id, user1_id, user2_id, conversation_id) VALUES ('m1', 'b', 'a', 'a_b')`)
	require.Error(t, err, "user1_id must sort before user2_id")

	_, err = pool.Exec(ctx, `INSERT INTO matches (id, user1_id, user2_id, conversation_id) VALUES ('m1', 'a', 'b', 'a_b')`)
	require.NoError(t, err)
}

func TestIntegrationMigration_RerunIsNoop(t *testing.T) {
	_, _, dbURL := newMigrationTestEnv(t)

	version, err := Migrate(dbURL)
	require.NoError(t, err)
	assert.EqualValues(t, 8, version)
}
