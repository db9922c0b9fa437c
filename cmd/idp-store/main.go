package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/idp-store/internal/clientstore"
	"github.com/alexjbarnes/idp-store/internal/config"
	"github.com/alexjbarnes/idp-store/internal/docstore"
	"github.com/alexjbarnes/idp-store/internal/grantstore"
	"github.com/alexjbarnes/idp-store/internal/identitystore"
	"github.com/alexjbarnes/idp-store/internal/logging"
	"github.com/alexjbarnes/idp-store/internal/models"
	"github.com/alexjbarnes/idp-store/internal/resourcestore"
	"github.com/alexjbarnes/idp-store/internal/seed"
)

var Version = "dev"

func main() {
	// Handle hash subcommands before config loading.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-password":
			hashPassword()
			return
		case "hash-secret":
			hashSecret()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// hashPassword prints a bcrypt hash for storing in a user record.
func hashPassword() {
	fmt.Fprint(os.Stderr, "Enter password: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr, "no input")
		os.Exit(1)
	}
	password := scanner.Text()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}

// hashSecret prints the hash of a client secret for use in a seed file
// or client registration.
func hashSecret() {
	fmt.Fprint(os.Stderr, "Enter secret: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr, "no input")
		os.Exit(1)
	}
	fmt.Println(clientstore.SecretHash(scanner.Text()))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("idp-store starting",
		slog.String("version", Version),
		slog.String("store", cfg.StorePath()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := docstore.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	clients, err := clientstore.New(db, logger)
	if err != nil {
		return fmt.Errorf("building client store: %w", err)
	}

	resources, err := resourcestore.New(db, logger)
	if err != nil {
		return fmt.Errorf("building resource store: %w", err)
	}

	grants, err := grantstore.New(db, logger, cfg.ReaperInterval)
	if err != nil {
		return fmt.Errorf("building grant store: %w", err)
	}
	defer grants.Stop()

	if _, err := identitystore.New(db, logger); err != nil {
		return fmt.Errorf("building identity store: %w", err)
	}

	reg := &registrar{clients: clients, resources: resources}

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("loading seed: %w", err)
		}

		if err := seed.Apply(ctx, f, reg, logger); err != nil {
			return fmt.Errorf("applying seed: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.SeedFile != "" {
		watcher := seed.NewWatcher(cfg.SeedFile, reg, logger)
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	logger.Info("idp-store ready")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("idp-store stopped")

	return nil
}

// registrar adapts the client and resource stores to the seed package.
type registrar struct {
	clients   *clientstore.Store
	resources *resourcestore.Store
}

func (r *registrar) UpsertClient(ctx context.Context, client models.Client) error {
	return r.clients.Upsert(ctx, client)
}

func (r *registrar) RegisterAPI(ctx context.Context, resource models.Resource) error {
	return r.resources.RegisterAPI(ctx, resource)
}

func (r *registrar) RegisterIdentity(ctx context.Context, resource models.Resource) error {
	return r.resources.RegisterIdentity(ctx, resource)
}
