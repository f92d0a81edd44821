package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/secmon-lab/vulnapproval/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdAudit() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Inspect and export approval audit trails",
		Commands: []*cli.Command{
			cmdAuditShow(),
			cmdAuditExport(),
		},
	}
}

func cmdAuditShow() *cli.Command {
	var appCfg config.App
	var repoCfg config.Repository
	var approvalID string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "approval-id",
			Aliases:     []string{"a"},
			Usage:       "Approval to show",
			Required:    true,
			Destination: &approvalID,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "show",
		Usage: "Print an approval with its members and audit trail",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			eng, err := newEngine(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer eng.close()

			detail, err := eng.uc.Approval.Get(ctx, model.ApprovalID(approvalID))
			if err != nil {
				return err
			}
			return renderApprovalDetail(c.Root().Writer, detail)
		},
	}
}

var statusColors = map[types.ApprovalStatus]*color.Color{
	types.ApprovalStatusCreated:    color.New(color.FgBlue),
	types.ApprovalStatusProcessing: color.New(color.FgYellow),
	types.ApprovalStatusApproving:  color.New(color.FgMagenta),
	types.ApprovalStatusClosed:     color.New(color.FgGreen),
}

func renderApprovalDetail(w io.Writer, d *model.ApprovalDetail) error {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	step := color.New(color.FgCyan)

	a := d.Approval
	st, ok := statusColors[a.Status]
	if !ok {
		st = color.New(color.Reset)
	}

	var b strings.Builder
	bold.Fprintf(&b, "%s", a.ID)
	fmt.Fprintf(&b, "  %s  [%s]\n", a.Title, st.Sprint(a.Status))
	fmt.Fprintf(&b, "  partition: %s  priority: %s  department: %s\n", a.Partition, a.Priority, a.Department)
	if a.Conclusion != "" {
		fmt.Fprintf(&b, "  conclusion: %s\n", a.Conclusion)
	}

	bold.Fprintf(&b, "\nVulnerabilities (%d)\n", len(d.Members))
	for _, v := range d.Members {
		fmt.Fprintf(&b, "  %-12s %-8s %-10s %s\n", v.ID, v.RiskLevel, v.Status, v.Name)
	}

	bold.Fprintf(&b, "\nAudit trail (%d)\n", len(d.AuditTrail))
	for _, e := range d.AuditTrail {
		faint.Fprintf(&b, "  %s #%d ", e.Time.Format(time.RFC3339), e.Seq)
		step.Fprintf(&b, "%-16s", e.Step)
		fmt.Fprintf(&b, " %s: %s\n", e.Operator, e.Result)
		if e.Comments != "" {
			faint.Fprintf(&b, "      %s\n", e.Comments)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return goerr.Wrap(err, "failed to write approval detail")
	}
	return nil
}

func cmdAuditExport() *cli.Command {
	var appCfg config.App
	var repoCfg config.Repository
	var output string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Destination: '-' for stdout, a file path, or gs://bucket/object",
			Value:       "-",
			Sources:     cli.EnvVars("VULNAPPROVAL_AUDIT_EXPORT_OUTPUT"),
			Destination: &output,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Write every audit entry as JSON Lines",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			eng, err := newEngine(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer eng.close()

			w, err := openOutput(ctx, c.Root().Writer, output)
			if err != nil {
				return err
			}

			n, err := exportAuditTrail(ctx, eng.uc.Approval, w)
			if err != nil {
				if a, ok := w.(interface{ Abort() }); ok {
					a.Abort()
				} else {
					safe.Close(ctx, w)
				}
				return err
			}
			// GCS uploads are committed on Close
			if err := w.Close(); err != nil {
				return goerr.Wrap(err, "failed to finish export", goerr.V("output", output))
			}

			logging.Default().Info("Audit trail exported", "entries", n, "output", output)
			return nil
		},
	}
}

type auditRecord struct {
	ID         string    `json:"id"`
	ApprovalID string    `json:"approval_id"`
	Seq        int64     `json:"seq"`
	Step       string    `json:"step"`
	Operator   string    `json:"operator"`
	Result     string    `json:"result"`
	Time       time.Time `json:"time"`
	Comments   string    `json:"comments,omitempty"`
}

// auditSource is the subset of ApprovalUseCase the exporter reads
type auditSource interface {
	List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error)
	History(ctx context.Context, id model.ApprovalID) ([]*model.AuditEntry, error)
}

var _ auditSource = (*usecase.ApprovalUseCase)(nil)

func exportAuditTrail(ctx context.Context, src auditSource, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	count := 0
	seen := 0

	for p := (interfaces.Page{Number: 1, Size: interfaces.MaxPageSize}); ; p.Number++ {
		approvals, total, err := src.List(ctx, interfaces.WithApprovalPage(p))
		if err != nil {
			return count, goerr.Wrap(err, "failed to list approvals", goerr.V("page", p.Number))
		}

		for _, a := range approvals {
			entries, err := src.History(ctx, a.ID)
			if err != nil {
				return count, goerr.Wrap(err, "failed to read audit trail", goerr.V(usecase.ApprovalIDKey, a.ID))
			}
			for _, e := range entries {
				if err := enc.Encode(auditRecord{
					ID:         string(e.ID),
					ApprovalID: string(e.ApprovalID),
					Seq:        e.Seq,
					Step:       e.Step.String(),
					Operator:   e.Operator,
					Result:     e.Result,
					Time:       e.Time,
					Comments:   e.Comments,
				}); err != nil {
					return count, goerr.Wrap(err, "failed to write audit record")
				}
				count++
			}
		}

		seen += len(approvals)
		if len(approvals) == 0 || seen >= total {
			return count, nil
		}
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// gcsWriter closes the object writer, then the client
type gcsWriter struct {
	*storage.Writer
	client *storage.Client
	cancel context.CancelFunc
}

// Abort discards the upload; the object is not created
func (g *gcsWriter) Abort() {
	g.cancel()
	_ = g.Writer.Close()
	_ = g.client.Close()
}

func (g *gcsWriter) Close() error {
	defer g.cancel()
	err := g.Writer.Close()
	if cerr := g.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func parseGCSURL(s string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(s, "gs://")
	if !ok {
		return "", "", goerr.New("not a gs:// URL", goerr.V("output", s))
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", goerr.Wrap(config.ErrInvalidConfig, "gs:// URL needs bucket and object", goerr.V("output", s))
	}
	return bucket, object, nil
}

func openOutput(ctx context.Context, stdout io.Writer, output string) (io.WriteCloser, error) {
	switch {
	case output == "" || output == "-":
		return nopCloser{stdout}, nil

	case strings.HasPrefix(output, "gs://"):
		bucket, object, err := parseGCSURL(output)
		if err != nil {
			return nil, err
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage client")
		}
		wctx, cancel := context.WithCancel(ctx)
		ow := client.Bucket(bucket).Object(object).NewWriter(wctx)
		ow.ContentType = "application/x-ndjson"
		return &gcsWriter{Writer: ow, client: client, cancel: cancel}, nil

	default:
		// #nosec G304 - path is provided by CLI flag
		f, err := os.Create(output)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create output file", goerr.V("output", output))
		}
		return f, nil
	}
}
