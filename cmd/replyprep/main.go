package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotnet/mbmlbook-sub000/internal/db"
	"github.com/dotnet/mbmlbook-sub000/internal/di"
	"github.com/dotnet/mbmlbook-sub000/internal/pipeline"
	"github.com/dotnet/mbmlbook-sub000/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Flags are the command line options.
type Flags struct {
	Migrate  bool
	ScoreRun string
	Top      int
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	flags := &Flags{}
	fs := flag.NewFlagSet("replyprep", flag.ContinueOnError)
	fs.BoolVar(&flags.Migrate, "migrate", true, "Apply database migrations before running")
	fs.StringVar(&flags.ScoreRun, "score-run", "", "Apply the posteriors stored for this run ID to the test set")
	fs.IntVar(&flags.Top, "top", 10, "Number of conversations to list when scoring")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return flags, nil
}

func main() {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	container, err := di.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, container, flags); err != nil {
		log.Fatalf("replyprep failed: %v", err)
	}
}

func run(ctx context.Context, container *dig.Container, flags *Flags) error {
	return container.Invoke(func(logger *zap.Logger, pool *pgxpool.Pool, p *pipeline.Pipeline) error {
		defer db.CloseConnection(pool)
		defer func() { _ = logger.Sync() }()

		if flags.Migrate {
			if err := migrations.Up(ctx, pool); err != nil {
				return err
			}
			logger.Debug("Applied migrations")
		}

		res, err := p.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Exported inputs", zap.String("run_id", res.RunID))

		if flags.ScoreRun != "" {
			return p.Score(ctx, res, flags.ScoreRun, flags.Top)
		}
		return nil
	})
}
