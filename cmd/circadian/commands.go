package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/store"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		person, timestamp, notes   string
		hr, systolic, diastolic, e int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record one measurement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if timestamp == "" {
				timestamp = time.Now().In(a.cfg.Location()).Format(core.TimestampLayout)
			}
			notes, _ = core.SanitizeInput(notes)
			fields := core.Fields{
				core.ColPersonID:    person,
				core.ColTimestamp:   timestamp,
				core.ColHeartRate:   hr,
				core.ColSystolicBP:  systolic,
				core.ColDiastolicBP: diastolic,
				core.ColEnergyLevel: e,
				core.ColNotes:       notes,
			}
			res, err := a.svc.AddEntry(cmd.Context(), fields)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entry saved: %s at %s\n", res.Record.PersonID, core.FormatTimestamp(res.Record.Timestamp))
			for _, w := range res.Warnings {
				fmt.Fprintln(out, "Warning:", w)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&person, "person", "p", "", "person id")
	f.StringVarP(&timestamp, "timestamp", "t", "", "YYYY-MM-DD HH:MM[:SS] (default now)")
	f.IntVar(&hr, "hr", 0, "heart rate in BPM")
	f.IntVar(&systolic, "systolic", 0, "systolic blood pressure")
	f.IntVar(&diastolic, "diastolic", 0, "diastolic blood pressure")
	f.IntVarP(&e, "energy", "e", 0, "energy level 1-10")
	f.StringVarP(&notes, "notes", "n", "", "optional notes")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("hr")
	_ = cmd.MarkFlagRequired("systolic")
	_ = cmd.MarkFlagRequired("diastolic")
	_ = cmd.MarkFlagRequired("energy")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a CSV file; any invalid row rejects the whole file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.svc.Import(cmd.Context(), f)
			out := cmd.OutOrStdout()
			if res.Verdict.Message != "" {
				printBatchVerdict(out, res.Verdict)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d entries (%d duplicates skipped)\n", res.Inserted, res.Duplicates)
			return nil
		},
	}
}

func newValidateFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-file FILE",
		Short: "Check a CSV file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			verdict, err := a.svc.ValidateImport(cmd.Context(), f)
			if err != nil {
				return err
			}
			printBatchVerdict(cmd.OutOrStdout(), verdict)
			if !verdict.Valid {
				return &core.Error{Kind: verdict.Kind, Message: verdict.Message}
			}
			return nil
		},
	}
}

func printBatchVerdict(w io.Writer, v core.BatchVerdict) {
	fmt.Fprintln(w, v.Message)
	for _, e := range v.Errors {
		fmt.Fprintln(w, "  error:", e)
	}
	if more := v.TotalErrors - len(v.Errors); more > 0 {
		fmt.Fprintf(w, "  ... and %d more errors\n", more)
	}
	for _, warn := range v.Warnings {
		fmt.Fprintln(w, "  warning:", warn)
	}
	if more := v.TotalWarnings - len(v.Warnings); more > 0 {
		fmt.Fprintf(w, "  ... and %d more warnings\n", more)
	}
}

// rangeFlags are the --start/--end date bounds shared by read commands.
type rangeFlags struct {
	start, end string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.start, "start", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&r.end, "end", "", "last date YYYY-MM-DD")
}

func (r *rangeFlags) parse(a *app) (store.DateRange, error) {
	var rng store.DateRange
	if r.start != "" {
		d, ok := core.ParseDate(r.start, a.cfg.Location())
		if !ok {
			return rng, &core.Error{Kind: core.KindParseError, Message: "Invalid start date. Use YYYY-MM-DD"}
		}
		rng.Start = d
	}
	if r.end != "" {
		d, ok := core.ParseDate(r.end, a.cfg.Location())
		if !ok {
			return rng, &core.Error{Kind: core.KindParseError, Message: "Invalid end date. Use YYYY-MM-DD"}
		}
		rng.End = d
	}
	return rng, nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		person, output string
		rf             rangeFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write entries as CSV to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := rf.parse(a)
			if err != nil {
				return err
			}
			data := a.svc.Export(person, rng)
			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(output, []byte(data), 0o644); err != nil {
				return err
			}
			a.logger.Info("export written", "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "only this person")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	rf.register(cmd)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		person string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show summary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum := a.svc.Stats(person)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, sum)
			}
			if sum.Empty() {
				fmt.Fprintln(out, "No data")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Entries\t%d\n", sum.TotalEntries)
			fmt.Fprintf(tw, "Persons\t%d\n", sum.Persons)
			fmt.Fprintf(tw, "First\t%s\n", core.FormatTimestamp(sum.FirstEntry))
			fmt.Fprintf(tw, "Last\t%s\n", core.FormatTimestamp(sum.LastEntry))
			fmt.Fprintln(tw, "\nMetric\tMean\tStd\tMin\tMax")
			for _, m := range []struct {
				name string
				s    store.MetricStats
			}{
				{"heart_rate", sum.HeartRate},
				{"systolic_bp", sum.SystolicBP},
				{"diastolic_bp", sum.DiastolicBP},
				{"energy_level", sum.EnergyLevel},
			} {
				fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.0f\t%.0f\n", m.name, m.s.Mean, m.s.Std, m.s.Min, m.s.Max)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "only this person")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPatternsCmd(a *app) *cobra.Command {
	var (
		person string
		asJSON bool
		rf     rangeFlags
	)
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show hour-of-day and weekday patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := rf.parse(a)
			if err != nil {
				return err
			}
			p := a.svc.Patterns(store.Filter{PersonID: person, Range: rng})
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, p)
			}
			if len(p.Hourly) == 0 {
				fmt.Fprintln(out, "No data")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Hour\tN\tHR\tSys\tDia\tEnergy")
			for _, b := range p.Hourly {
				fmt.Fprintf(tw, "%02d\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
					b.Hour, b.Count, b.HeartRate, b.SystolicBP, b.DiastolicBP, b.EnergyLevel)
			}
			fmt.Fprintln(tw, "\nDay\tN\tHR\tSys\tDia\tEnergy")
			for _, b := range p.Weekday {
				fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
					b.Day, b.Count, b.HeartRate, b.SystolicBP, b.DiastolicBP, b.EnergyLevel)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			hours := make([]string, len(p.PeakEnergyHours))
			for i, h := range p.PeakEnergyHours {
				hours[i] = fmt.Sprintf("%02d:00", h)
			}
			fmt.Fprintln(out, "\nPeak energy:", strings.Join(hours, ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "only this person")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	rf.register(cmd)
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		person, search string
		rf             rangeFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := rf.parse(a)
			if err != nil {
				return err
			}
			rows := a.svc.Rows(store.Filter{PersonID: person, Range: rng, Search: search})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Pos\tPerson\tTimestamp\tHR\tBP\tEnergy\tNotes")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d/%d\t%d\t%s\n",
					r.Position, r.PersonID, core.FormatTimestamp(r.Timestamp),
					r.HeartRate, r.SystolicBP, r.DiastolicBP, r.EnergyLevel, r.Notes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "only this person")
	cmd.Flags().StringVarP(&search, "search", "q", "", "match person id or notes")
	rf.register(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete POS",
		Short: "Delete the entry at a position shown by list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[0])
			if err != nil {
				return &core.Error{Kind: core.KindIndexError, Message: fmt.Sprintf("Invalid entry position %q", args[0])}
			}
			if err := a.svc.DeleteEntry(cmd.Context(), pos); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", pos)
			return nil
		},
	}
}

func newDeletePersonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-person ID",
		Short: "Delete every entry for a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.DeletePerson(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries for %s\n", n, args[0])
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &core.Error{Kind: core.KindMissingField, Message: "Clearing all data requires --yes"}
			}
			if err := a.svc.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the data file to the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Backup(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backup written:", res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "backup file name (default timestamped)")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace the Postgres mirror with the current data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := a.withWarehouse(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.SyncWarehouse(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d rows\n", n)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
