package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/repository/firestore"
	"github.com/secmon-lab/vulnapproval/pkg/repository/memory"
	"github.com/secmon-lab/vulnapproval/pkg/repository/postgres"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository backends
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	postgresDSN      string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore, postgres or memory)",
			Value:       BackendFirestore,
			Category:    "Repository",
			Sources:     cli.EnvVars("VULNAPPROVAL_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("VULNAPPROVAL_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("VULNAPPROVAL_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix added to every Firestore collection name",
			Category:    "Repository",
			Sources:     cli.EnvVars("VULNAPPROVAL_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string (required when using postgres backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("VULNAPPROVAL_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection name prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// PostgresDSN returns the PostgreSQL connection string
func (r *Repository) PostgresDSN() string {
	return r.postgresDSN
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.Bool("postgres_dsn_set", r.postgresDSN != ""),
	)
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		var opts []firestore.Option
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendPostgres:
		if r.postgresDSN == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "postgres-dsn is required when using postgres backend")
		}
		repo, err := postgres.New(ctx, r.postgresDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		logging.Default().Info("Using PostgreSQL repository")
		return repo, nil

	case BackendMemory:
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
