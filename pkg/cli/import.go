package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// vulnerabilityFile is the seed data format read by the import command
type vulnerabilityFile struct {
	Vulnerabilities []vulnerabilityEntry `toml:"vulnerability"`
}

type vulnerabilityEntry struct {
	ID            string    `toml:"id"`
	Name          string    `toml:"name"`
	Source        string    `toml:"source"`
	ProjectNumber string    `toml:"project_number"`
	RiskLevel     string    `toml:"risk_level"`
	Description   string    `toml:"description"`
	DiscoveredAt  time.Time `toml:"discovered_at"`
}

func (e *vulnerabilityEntry) toInput() (usecase.RegisterVulnerabilityInput, error) {
	level, err := types.ParseRiskLevel(e.RiskLevel)
	if err != nil {
		return usecase.RegisterVulnerabilityInput{}, goerr.Wrap(err, "invalid risk_level", goerr.V(usecase.VulnerabilityIDKey, e.ID))
	}
	return usecase.RegisterVulnerabilityInput{
		ID:            model.VulnerabilityID(e.ID),
		Name:          e.Name,
		Source:        e.Source,
		ProjectNumber: e.ProjectNumber,
		RiskLevel:     level,
		Description:   e.Description,
		DiscoveredAt:  e.DiscoveredAt,
	}, nil
}

func loadVulnerabilityFile(path string) ([]usecase.RegisterVulnerabilityInput, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read vulnerability file", goerr.V(config.ConfigPathKey, path))
	}

	var file vulnerabilityFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse vulnerability file", goerr.V(config.ConfigPathKey, path))
	}

	inputs := make([]usecase.RegisterVulnerabilityInput, 0, len(file.Vulnerabilities))
	for _, e := range file.Vulnerabilities {
		in, err := e.toInput()
		if err != nil {
			return nil, goerr.Wrap(err, "invalid vulnerability entry", goerr.V(config.ConfigPathKey, path))
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

type importResult struct {
	Created int
	Skipped int
}

func importVulnerabilities(ctx context.Context, uc *usecase.VulnerabilityUseCase, inputs []usecase.RegisterVulnerabilityInput, skipExisting bool) (importResult, error) {
	var result importResult
	for _, in := range inputs {
		if _, err := uc.Register(ctx, in); err != nil {
			if skipExisting && errors.Is(err, usecase.ErrVulnerabilityExists) {
				logging.From(ctx).Info("Vulnerability already registered, skipped", "id", in.ID)
				result.Skipped++
				continue
			}
			return result, err
		}
		result.Created++
	}
	return result, nil
}

func cmdImport() *cli.Command {
	var appCfg config.App
	var repoCfg config.Repository
	var path string
	var skipExisting bool

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "TOML file with [[vulnerability]] entries",
			Required:    true,
			Destination: &path,
		},
		&cli.BoolFlag{
			Name:        "skip-existing",
			Usage:       "Skip vulnerabilities whose ID is already registered",
			Destination: &skipExisting,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "import",
		Usage: "Register vulnerabilities from a TOML file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			inputs, err := loadVulnerabilityFile(path)
			if err != nil {
				return err
			}

			eng, err := newEngine(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer eng.close()

			result, err := importVulnerabilities(ctx, eng.uc.Vulnerability, inputs, skipExisting)
			logging.Default().Info("Import finished",
				"created", result.Created,
				"skipped", result.Skipped,
				"total", len(inputs))
			if err != nil {
				return goerr.Wrap(err, "import aborted")
			}
			return nil
		},
	}
}
