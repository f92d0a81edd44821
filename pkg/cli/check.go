package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// ErrInconsistent is returned by the check command when discrepancies are found
var ErrInconsistent = goerr.New("membership links are inconsistent")

func printDiscrepancies(w io.Writer, found []usecase.Discrepancy) error {
	for _, d := range found {
		vid := d.VulnerabilityID.String()
		if vid == "" {
			vid = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", d.Kind, d.ApprovalID, vid); err != nil {
			return goerr.Wrap(err, "failed to write discrepancy")
		}
	}
	return nil
}

func cmdCheck() *cli.Command {
	var appCfg config.App
	var repoCfg config.Repository

	flags := append(appCfg.Flags(), repoCfg.Flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Verify that approval member sets and vulnerability links agree",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			eng, err := newEngine(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer eng.close()

			found, err := eng.uc.Approval.CheckConsistency(ctx)
			if err != nil {
				return goerr.Wrap(err, "consistency check failed")
			}
			if err := printDiscrepancies(c.Root().Writer, found); err != nil {
				return err
			}
			if len(found) > 0 {
				return goerr.Wrap(ErrInconsistent, "discrepancies found", goerr.V("count", len(found)))
			}

			logging.Default().Info("No discrepancies found")
			return nil
		},
	}
}
