package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

// engine bundles what every data command needs. Call close when done.
type engine struct {
	repo interfaces.Repository
	uc   *usecase.UseCases
	app  *config.AppConfig
}

func (e *engine) close() {
	if err := e.repo.Close(); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}

func newEngine(ctx context.Context, appCfg *config.App, repoCfg *config.Repository, opts ...usecase.Option) (*engine, error) {
	app, err := appCfg.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load app configuration")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	logging.Default().Info("Engine configuration", "app", app, "repository", repoCfg)
	return &engine{
		repo: repo,
		uc:   usecase.New(repo, append(app.UseCaseOptions(), opts...)...),
		app:  app,
	}, nil
}
