package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/Strob0t/memorybridge/internal/adapter/postgres"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "set-ontology":
		return runAdminSetOntology(args[1:])
	case "set-credential":
		return runAdminSetCredential(args[1:])
	case "delete-credential":
		return runAdminDeleteCredential(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: memorybridge admin <command> [options]

Commands:
  set-ontology       Replace the custom entity types of a workspace graph
  set-credential     Store a workspace gateway API key
  delete-credential  Remove a workspace gateway API key
  migrate            Apply or roll back database migrations
  help               Show this help message

Examples:
  memorybridge admin set-ontology --file ontology.yaml --workspace acme
  memorybridge admin set-credential --workspace acme
  memorybridge admin set-credential --workspace acme --base-url https://zep.internal
  memorybridge admin delete-credential --workspace acme
  memorybridge admin migrate
  memorybridge admin migrate --down 1
`)
}

func loadAdminDeps(ctx context.Context) (*providers, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Cache.Enabled = false
	return buildProviders(ctx, cfg)
}

func runAdminSetOntology(args []string) error {
	fs := flag.NewFlagSet("set-ontology", flag.ContinueOnError)
	file := fs.String("file", "", "ontology YAML file (required)")
	workspace := fs.String("workspace", "", "workspace whose gateway receives the ontology")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file is required")
	}

	ontology, err := service.LoadOntology(*file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.memory.SetOntology(ctx, *workspace, ontology); err != nil {
		return fmt.Errorf("set ontology: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ontology applied: %d entity types\n", len(ontology.EntityTypes))
	return nil
}

func runAdminSetCredential(args []string) error {
	fs := flag.NewFlagSet("set-credential", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace id (required)")
	baseURL := fs.String("base-url", "", "gateway base URL (default: configured gateway)")
	apiKey := fs.String("api-key", "", "gateway API key (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return errors.New("--workspace is required")
	}

	key := *apiKey
	if key == "" {
		var err error
		key, err = promptSecret("Gateway API key: ")
		if err != nil {
			return fmt.Errorf("read api key: %w", err)
		}
	}

	ctx := context.Background()
	p, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer p.Close()
	if p.credentials == nil {
		return errors.New("postgres.dsn is required to store credentials")
	}

	c, err := p.credentials.Set(ctx, &credential.SetRequest{
		WorkspaceID: *workspace,
		Provider:    credential.ProviderZep,
		BaseURL:     *baseURL,
		APIKey:      key,
	})
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Credential stored for workspace %s (provider=%s)\n", c.WorkspaceID, c.Provider)
	return nil
}

func runAdminDeleteCredential(args []string) error {
	fs := flag.NewFlagSet("delete-credential", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return errors.New("--workspace is required")
	}

	ctx := context.Background()
	p, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer p.Close()
	if p.credentials == nil {
		return errors.New("postgres.dsn is required to delete credentials")
	}

	if err := p.credentials.Delete(ctx, *workspace, credential.ProviderZep); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Credential deleted for workspace %s\n", *workspace)
	return nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Int("down", 0, "roll back this many migrations instead of applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}

	ctx := context.Background()
	if *down > 0 {
		err = postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *down)
	} else {
		err = postgres.RunMigrations(ctx, cfg.Postgres.DSN)
	}
	if err != nil {
		return err
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Database at migration version %d\n", v)
	return nil
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after secret input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
