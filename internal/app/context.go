// Package app wires storage, configuration and services for the CLI and the server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"taskraid/internal/config"
	"taskraid/internal/db"
	"taskraid/internal/engine"
	"taskraid/internal/game"
	"taskraid/internal/migrate"
	"taskraid/internal/overdue"
	"taskraid/internal/random"
	"taskraid/internal/repo"
	"taskraid/internal/review"
	"taskraid/internal/sentiment"
)

type Options struct {
	Workspace string
	DBPath    string
	// Config is loaded from the workspace when nil.
	Config  *config.Config
	Runtime config.Runtime
	// Seed fixes the random source; zero draws one from crypto/rand.
	Seed   uint64
	Logger *slog.Logger
}

// App is a ready-to-use set of services over one database.
type App struct {
	DB      *sql.DB
	Repo    repo.Repo
	Config  *config.Config
	Runtime config.Runtime
	Game    game.Engine
	Engine  engine.Engine
	Review  review.Service
	Logger  *slog.Logger
}

// Open opens and migrates the workspace database, seeds the catalog and
// builds the services.
func Open(ctx context.Context, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadOptional(opts.Workspace); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	seed := opts.Seed
	if seed == 0 {
		var err error
		if seed, err = random.NewSeed(); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Path: opts.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn, log); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r := repo.New(conn)
	g := game.New(r, cfg.Game, random.New(seed))
	g.Logger = log
	eng := engine.New(r, g)
	eng.Logger = log
	rev := review.New(r, g, Scorer(opts.Runtime, log))
	rev.Logger = log

	a := &App{DB: conn, Repo: r, Config: cfg, Runtime: opts.Runtime, Game: g, Engine: eng, Review: rev, Logger: log}
	if err := eng.SeedCatalog(ctx, cfg.Catalog.Engine()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Scorer uses the hosted classifier when a URL is configured and the lexicon otherwise.
func Scorer(rt config.Runtime, log *slog.Logger) sentiment.Scorer {
	s := sentiment.Scorer{Logger: log}
	if rt.ClassifierURL != "" {
		s.Classifier = sentiment.HTTPClassifier{URL: rt.ClassifierURL, Token: rt.ClassifierToken, Timeout: rt.ClassifierTimeout}
	}
	return s
}

type SweepOptions struct {
	ProjectID string
	DryRun    bool
	// Limit and Workers fall back to the sweep section of the config.
	Limit   int
	Workers int
}

// Sweeper returns an overdue sweeper configured from the app and opts.
func (a *App) Sweeper(opts SweepOptions) overdue.Sweeper {
	limit, workers := opts.Limit, opts.Workers
	if limit <= 0 {
		limit = a.Config.Sweep.Limit
	}
	if workers <= 0 {
		workers = a.Config.Sweep.Workers
	}
	return overdue.Sweeper{
		Store:     a.Repo,
		Game:      a.Game,
		Now:       a.Game.Now,
		Limit:     limit,
		Workers:   workers,
		DryRun:    opts.DryRun,
		ProjectID: opts.ProjectID,
		Logger:    a.Logger,
	}
}

// ResolveProject picks the project a command acts on. It prefers the
// override, then the only project the user belongs to.
func (a *App) ResolveProject(ctx context.Context, override, userID string) (string, error) {
	if override != "" {
		return override, nil
	}
	projects, err := a.Engine.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	var found []string
	for _, p := range projects {
		members, err := a.Engine.ListMembers(ctx, p.ID)
		if err != nil {
			return "", err
		}
		for _, m := range members {
			if m.UserID == userID {
				found = append(found, p.ID)
				break
			}
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", fmt.Errorf("no project for %s; use --project", userID)
	default:
		return "", fmt.Errorf("%s belongs to %d projects; use --project", userID, len(found))
	}
}
