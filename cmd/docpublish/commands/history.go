package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/history"
)

// HistoryCmd lists or shows recorded publish runs.
type HistoryCmd struct {
	Limit int    `help:"Maximum number of runs to list" default:"20"`
	Show  string `help:"Print the full report for a run id"`
}

func (h *HistoryCmd) Run(cli *CLI, global *Global) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ConfigureLogging(cfg, cli.Verbose)

	if !cfg.History.StoreEnabled() {
		return fmt.Errorf("history is disabled in %s", cli.Config)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if h.Show != "" {
		record, err := store.GetRun(ctx, h.Show)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(record.Report, '\n'))
		return err
	}

	records, err := store.ListRuns(ctx, h.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tOUTCOME\tFILES\tBROKEN LINKS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID,
			r.Started.Local().Format(time.RFC3339),
			time.Duration(r.DurationMS)*time.Millisecond,
			r.Outcome,
			r.Files,
			r.BrokenLinks)
	}
	return w.Flush()
}
