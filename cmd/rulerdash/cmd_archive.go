package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ruler-racer/rulerdash/internal/archive"
	"github.com/ruler-racer/rulerdash/internal/views/dashboard"
	"github.com/spf13/cobra"
)

var (
	showHistory bool

	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived sessions",
	}
	archiveListCmd = &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runArchiveList,
	}
	archiveShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print one archived session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runArchiveShow,
	}
)

func init() {
	archiveShowCmd.Flags().BoolVar(&showHistory, "history", false, "Include the history series")
}

func runArchiveList(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime("rulerdash", false)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := openArchive(rt)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List()
	if err != nil {
		return err
	}
	return writeArchiveList(cmd.OutOrStdout(), recs)
}

func writeArchiveList(w io.Writer, recs []archive.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no archived sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARCHIVED\tORDER\tRESULT\tDURATION\tEVENTS")
	for _, rec := range recs {
		id := rec.ID
		if len(id) > 8 {
			id = id[:8]
		}
		order := "-"
		if rec.State.CurrentOrder != nil {
			order = fmt.Sprint(*rec.State.CurrentOrder)
		}
		duration := "-"
		if d := rec.State.Elapsed(rec.ArchivedAt); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			id, rec.ArchivedAt.Local().Format(time.DateTime), order,
			dashboard.Result(rec.State), duration, rec.State.Events)
	}
	return tw.Flush()
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime("rulerdash", false)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := openArchive(rt)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Resolve(args[0])
	if err != nil {
		return err
	}
	if !showHistory {
		rec.History = nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
