// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/aroosi/aroosi-api/internal/model"
)

// RequireEnv returns the value of key or skips the test when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}

// dbTestLock is the pg_advisory_lock key shared by every package that runs
// integration tests against the same database.
const dbTestLock int64 = 0x4172_6f6f_7369

// LockDB holds a session advisory lock until the test ends, serialising
// packages that `go test ./...` runs in parallel.
func LockDB(t testing.TB, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection for test lock: %v", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbTestLock); err != nil {
		conn.Release()
		t.Fatalf("take test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", dbTestLock)
		conn.Release()
	})
}

// DropPublicSchema wipes every table so migrations can be replayed.
func DropPublicSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		return fmt.Errorf("reset public schema: %w", err)
	}
	return nil
}

// appTables lists every table created by the migrations, parents first.
var appTables = []string{
	"users", "refresh_tokens", "profiles", "profile_views",
	"interests", "matches", "shortlists", "messages",
	"usage_counters", "usage_events", "quick_pick_actions",
	"blocks", "reports", "device_tokens", "notifications",
}

// TruncateAll empties the application tables but keeps the schema.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := "TRUNCATE " + strings.Join(appTables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// FlushRedis clears the selected Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// testPasswordHash is a syntactically valid argon2id hash that matches no password.
const testPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

// NewTestUser returns an unsaved free-plan user with a unique id and email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Email:        "user-" + id + "@example.com",
		PasswordHash: testPasswordHash,
		Role:         model.RoleUser,
		Plan:         model.PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestProfile returns an unsaved profile for userID that passes the
// completeness check.
func NewTestProfile(t testing.TB, userID string, gender model.Gender, preferred model.PreferredGender) *model.Profile {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return &model.Profile{
		UserID:          userID,
		FullName:        "Test " + suffix,
		Gender:          gender,
		PreferredGender: preferred,
		DateOfBirth:     time.Date(1995, time.May, 20, 0, 0, 0, 0, time.UTC),
		City:            "London",
		Country:         "UK",
		Languages:       []string{"English"},
		AboutMe:         "About me",
		Images:          []string{"https://cdn.example.com/" + userID + ".jpg"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
