package di

import (
	"context"

	"github.com/dotnet/mbmlbook-sub000/internal/config"
	"github.com/dotnet/mbmlbook-sub000/internal/db"
	"github.com/dotnet/mbmlbook-sub000/internal/logging"
	"github.com/dotnet/mbmlbook-sub000/internal/pipeline"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
)

// BuildContainer creates a container that loads configuration from the environment.
func BuildContainer() (*dig.Container, error) {
	return build(config.NewConfig)
}

// BuildContainerWithConfig creates a container around an already loaded configuration.
func BuildContainerWithConfig(cfg *config.Config) (*dig.Container, error) {
	return build(func() (*config.Config, error) { return cfg, nil })
}

func build(loadConfig func() (*config.Config, error)) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(loadConfig); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register database pool
	if err := container.Provide(func(cfg *config.Config) (*pgxpool.Pool, error) {
		return db.NewConnection(context.Background(), cfg)
	}); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(pipeline.New); err != nil {
		return nil, err
	}

	return container, nil
}
