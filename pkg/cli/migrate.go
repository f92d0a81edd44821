package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/repository/firestore"
	"github.com/secmon-lab/vulnapproval/pkg/repository/postgres"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes or the PostgreSQL schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Migrate configuration",
				"repository", repoCfg,
				"dryRun", dryRun)

			switch repoCfg.Backend() {
			case config.BackendFirestore:
				return migrateFirestore(ctx, &repoCfg, dryRun)
			case config.BackendPostgres:
				return migratePostgres(ctx, c, &repoCfg, dryRun)
			case config.BackendMemory:
				logging.Default().Info("Memory backend has nothing to migrate")
				return nil
			default:
				return goerr.Wrap(config.ErrInvalidConfig, "invalid repository backend", goerr.V(config.BackendKey, repoCfg.Backend()))
			}
		},
	}
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.Default()
	if repoCfg.ProjectID() == "" {
		return goerr.Wrap(config.ErrInvalidConfig, "firestore-project-id is required for migration")
	}

	indexConfig := getIndexConfig(repoCfg.CollectionPrefix())

	client, err := fireconf.NewClient(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID())
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

func migratePostgres(ctx context.Context, c *cli.Command, repoCfg *config.Repository, dryRun bool) error {
	if dryRun {
		_, err := fmt.Fprintln(c.Root().Writer, postgres.Schema())
		return err
	}

	if repoCfg.PostgresDSN() == "" {
		return goerr.Wrap(config.ErrInvalidConfig, "postgres-dsn is required for migration")
	}
	db, err := postgres.New(ctx, repoCfg.PostgresDSN())
	if err != nil {
		return goerr.Wrap(err, "failed to connect postgres")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Default().Error("failed to close postgres", "error", err.Error())
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logging.Default().Info("Schema applied successfully")
	return nil
}

// getIndexConfig returns the Firestore composite indexes used by list queries
func getIndexConfig(prefix string) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.CollectionName(prefix, firestore.CollectionVulnerabilities),
				Indexes: []fireconf.Index{
					// List: RiskLevel == && Status ==
					{
						Fields: []fireconf.IndexField{
							{Path: "RiskLevel", Order: fireconf.OrderAscending},
							{Path: "Status", Order: fireconf.OrderAscending},
						},
					},
					// List: RiskLevel == && ApprovalID == "" (unassigned)
					{
						Fields: []fireconf.IndexField{
							{Path: "RiskLevel", Order: fireconf.OrderAscending},
							{Path: "ApprovalID", Order: fireconf.OrderAscending},
						},
					},
					// List: Status == && ApprovalID == ""
					{
						Fields: []fireconf.IndexField{
							{Path: "Status", Order: fireconf.OrderAscending},
							{Path: "ApprovalID", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				// subcollection approvals/{id}/audit_entries
				Name: firestore.CollectionAuditEntries,
				Indexes: []fireconf.Index{
					// ListByApproval: Time ASC, Seq ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "Time", Order: fireconf.OrderAscending},
							{Path: "Seq", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
