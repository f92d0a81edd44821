package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/cli"
)

func TestRun_ImportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulns.toml")
	gt.NoError(t, os.WriteFile(path, []byte(`
[[vulnerability]]
id = "V1"
name = "Reflected XSS"
source = "DAST"
risk_level = "high"
`), 0600)).Required()

	err := cli.Run(context.Background(), []string{
		"vulnapproval", "import",
		"--repository-backend", "memory",
		"--file", path,
	}, "test")
	gt.NoError(t, err)
}

func TestRun_CheckCommand_EmptyStore(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"vulnapproval", "check",
		"--repository-backend", "memory",
	}, "test")
	gt.NoError(t, err)
}

func TestRun_InvalidBackend(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"vulnapproval", "check",
		"--repository-backend", "mysql",
	}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_MissingConfigFile(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"vulnapproval", "check",
		"--repository-backend", "memory",
		"--config", filepath.Join(t.TempDir(), "none.toml"),
	}, "test")
	gt.Value(t, err).NotNil()
}
