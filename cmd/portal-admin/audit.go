package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jemaat/portal/internal/data"
	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/ports"
)

const defaultAuditTimeout = 30 * time.Second

type auditListOptions struct {
	Limit    int
	Offset   int
	Kind     string
	ClientID string
	JSON     bool
}

func runAuditList(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditListFlags(args)
	if err != nil {
		return err
	}
	listOpts, err := opts.toListOptions()
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultAuditTimeout, func(ctx context.Context, db *sql.DB) error {
		return listAuditEvents(ctx, data.NewAuditRepo(db), listOpts, opts.JSON, cmdCtx.Out)
	})
}

func parseAuditListFlags(args []string) (auditListOptions, error) {
	fs := flag.NewFlagSet("audit-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts auditListOptions
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of events to show")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of events to skip")
	fs.StringVar(&opts.Kind, "kind", "", "Only show events of this kind (login_succeeded, login_failed, logout, ...)")
	fs.StringVar(&opts.ClientID, "client-id", "", "Only show events of one browser client")
	fs.BoolVar(&opts.JSON, "json", false, "Print events as JSON lines")

	if err := fs.Parse(args); err != nil {
		return auditListOptions{}, err
	}
	if opts.Limit <= 0 {
		return auditListOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return auditListOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func (o auditListOptions) toListOptions() (model.AccessEventListOptions, error) {
	lo := model.AccessEventListOptions{Limit: o.Limit, Offset: o.Offset}
	if o.Kind != "" {
		kind, ok := model.ParseAccessEventKind(o.Kind)
		if !ok {
			return lo, fmt.Errorf("unknown event kind %q", o.Kind)
		}
		lo.Kind = &kind
	}
	if o.ClientID != "" {
		id := o.ClientID
		lo.ClientID = &id
	}
	return lo, nil
}

func listAuditEvents(
	ctx context.Context,
	reader ports.AuditReader,
	opts model.AccessEventListOptions,
	asJSON bool,
	out io.Writer,
) error {
	events, err := reader.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("list access events: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	if len(events) == 0 {
		return writeln(out, "No access events found.")
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "TIME\tKIND\tEMAIL\tROLE\tCLIENT\tDETAIL\n"); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.UTC().Format(time.RFC3339), ev.Kind, dash(ev.Email), dash(ev.Role), ev.ClientID, ev.Detail); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(out, "\n%d event(s), offset %d\n", len(events), opts.Offset)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type auditPurgeOptions struct {
	OlderThan time.Duration
	Yes       bool
}

func runAuditPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditPurgeFlags(args)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-opts.OlderThan)
	if err := confirmAction(cmdCtx, opts.Yes,
		fmt.Sprintf("About to delete access events recorded before %s.", cutoff.UTC().Format(time.RFC3339))); err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultAuditTimeout, func(ctx context.Context, db *sql.DB) error {
		return purgeAuditEvents(ctx, data.NewAuditRepo(db), cutoff, cmdCtx.Out)
	})
}

func parseAuditPurgeFlags(args []string) (auditPurgeOptions, error) {
	fs := flag.NewFlagSet("audit-purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts auditPurgeOptions
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Delete events older than this, e.g. 2160h for 90 days")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return auditPurgeOptions{}, err
	}
	if opts.OlderThan <= 0 {
		return auditPurgeOptions{}, errors.New("--older-than must be greater than zero")
	}
	return opts, nil
}

func purgeAuditEvents(ctx context.Context, reader ports.AuditReader, cutoff time.Time, out io.Writer) error {
	n, err := reader.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge access events: %w", err)
	}
	return writef(out, "Deleted %d access event(s).\n", n)
}
