package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/litrev/litrev/internal/adapter/postgres"
	"github.com/litrev/litrev/internal/config"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/user"
	"github.com/litrev/litrev/internal/service"
)

// runAdmin dispatches the admin subcommands. These run against the database
// directly and exist because user registration and project membership are
// administrative actions, not API surface.
func runAdmin(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: litrev admin <create-user|create-project|add-member>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := postgres.NewStore(pool)

	switch args[0] {
	case "create-user":
		return adminCreateUser(ctx, store, cfg, args[1:])
	case "create-project":
		return adminCreateProject(ctx, store, args[1:])
	case "add-member":
		return adminAddMember(ctx, store, args[1:])
	default:
		return fmt.Errorf("unknown admin command %q", args[0])
	}
}

func adminCreateProject(ctx context.Context, store *postgres.Store, args []string) error {
	fs := flag.NewFlagSet("create-project", flag.ExitOnError)
	name := fs.String("name", "", "project name (required)")
	description := fs.String("description", "", "project description")
	dual := fs.Bool("dual-screening", true, "require two independent reviewers per study")
	blind := fs.Bool("blind", false, "hide other reviewers' votes until a study is finalized")
	gating := fs.String("conflict-gating", string(project.GatingBlockOpen), "phase gate rule: block_open or ignore")
	owner := fs.String("owner", "", "user id to add as OWNER (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *owner == "" {
		return fmt.Errorf("create-project: -name and -owner are required")
	}
	g := project.ConflictGating(*gating)
	if g != project.GatingBlockOpen && g != project.GatingIgnore {
		return fmt.Errorf("create-project: invalid conflict-gating %q", *gating)
	}

	if _, err := store.GetUser(ctx, *owner); err != nil {
		return err
	}

	p := &project.Project{
		ID:          uuid.NewString(),
		Name:        *name,
		Description: *description,
		Policy: screening.Policy{
			RequireDualScreening: *dual,
			BlindScreening:       *blind,
		},
		ConflictGating: g,
		CurrentPhase:   screening.PhaseTitleAbstract,
	}
	if err := store.CreateProject(ctx, p); err != nil {
		return err
	}

	m := &member.Member{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		UserID:    *owner,
		Role:      member.RoleOwner,
	}
	if err := store.CreateMember(ctx, m); err != nil {
		return err
	}

	fmt.Printf("created project %s (%s)\n", p.ID, p.Name)
	return nil
}

func adminCreateUser(ctx context.Context, store *postgres.Store, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	email := fs.String("email", "", "user email (required)")
	name := fs.String("name", "", "display name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return fmt.Errorf("create-user: -email and -name are required")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	authSvc := service.NewAuthService(store, &cfg.Auth)
	u, err := authSvc.Register(ctx, &user.CreateRequest{
		Email:    *email,
		Name:     *name,
		Password: string(password),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s)\n", u.ID, u.Email)
	return nil
}

func adminAddMember(ctx context.Context, store *postgres.Store, args []string) error {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	projectID := fs.String("project", "", "project id (required)")
	userID := fs.String("user", "", "user id (required)")
	role := fs.String("role", string(member.RoleReviewer), "role: OWNER, LEAD, REVIEWER or VIEWER")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectID == "" || *userID == "" {
		return fmt.Errorf("add-member: -project and -user are required")
	}
	if !member.ValidRoles[member.Role(*role)] {
		return fmt.Errorf("add-member: invalid role %q", *role)
	}

	if _, err := store.GetUser(ctx, *userID); err != nil {
		return err
	}
	if _, err := store.GetProject(ctx, *projectID); err != nil {
		return err
	}

	m := &member.Member{
		ID:        uuid.NewString(),
		ProjectID: *projectID,
		UserID:    *userID,
		Role:      member.Role(*role),
	}
	if err := store.CreateMember(ctx, m); err != nil {
		return err
	}

	fmt.Printf("added %s to project %s as %s\n", *userID, *projectID, *role)
	return nil
}
