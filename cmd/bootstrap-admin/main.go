// Command bootstrap-admin creates the first admin account, or promotes an
// existing account to admin. It talks to Postgres directly so it works before
// any admin exists.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
	"github.com/aroosi/aroosi-api/internal/service"
)

type output struct {
	UserID  string     `json:"user_id"`
	Email   string     `json:"email"`
	Role    model.Role `json:"role"`
	Plan    model.Plan `json:"plan"`
	Created bool       `json:"created"`
}

// adminStore is the slice of the repository this command needs.
type adminStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	SetUserRole(ctx context.Context, id string, role model.Role) (*model.User, error)
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", os.Getenv("BOOTSTRAP_ADMIN_EMAIL"), "Admin email")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"), "Password for a new account (ignored when promoting)")
		planInput   = flag.String("plan", string(model.PlanPremiumPlus), "Plan for a new account: free, premium or premiumPlus")
		migrate     = flag.Bool("migrate", false, "Apply migrations before bootstrapping")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *migrate {
		if _, err := repository.Migrate(*databaseURL); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, *databaseURL, repository.Options{MaxConns: 2, MinConns: 1})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	out, err := ensureAdmin(ctx, repo, *email, *password, model.Plan(*planInput))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := writeOutput(os.Stdout, out, *format); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// ensureAdmin promotes the account with email to admin, creating it when absent.
func ensureAdmin(ctx context.Context, store adminStore, email, password string, plan model.Plan) (*output, error) {
	email = service.NormalizeEmail(email)
	if err := service.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("email: %w", err)
	}

	existing, err := store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user := existing
		if existing.Role != model.RoleAdmin {
			user, err = store.SetUserRole(ctx, existing.ID, model.RoleAdmin)
			if err != nil {
				return nil, fmt.Errorf("promote user: %w", err)
			}
		}
		return &output{UserID: user.ID, Email: user.Email, Role: user.Role, Plan: user.Plan}, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !plan.IsValid() {
		return nil, fmt.Errorf("invalid plan: %s", plan)
	}
	if err := auth.ValidatePasswordPolicy(password); err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Plan:         plan,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &output{UserID: user.ID, Email: user.Email, Role: user.Role, Plan: user.Plan, Created: true}, nil
}

func writeOutput(w io.Writer, out *output, format string) error {
	switch strings.ToLower(format) {
	case "plain":
		_, err := fmt.Fprintln(w, out.UserID)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return errors.New("invalid format; use plain or json")
	}
}
