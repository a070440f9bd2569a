package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/notify"
	"github.com/warp/incentive-engine/store/memory"
)

type evaluateOptions struct {
	schemes    string
	fileA      string
	fileB      string
	keyA       string
	keyB       string
	nameColumn string
	record     string
	manager    string
	format     string
}

func newEvaluateCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Merge CSV exports and evaluate every record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.schemes, "schemes", "", "scheme file (JSON or YAML)")
	flags.StringVar(&opts.fileA, "file-a", "", "first CSV export")
	flags.StringVar(&opts.fileB, "file-b", "", "second CSV export (optional)")
	flags.StringVar(&opts.keyA, "key-a", "", "key column of file A")
	flags.StringVar(&opts.keyB, "key-b", "", "key column of file B (defaults to --key-a)")
	flags.StringVar(&opts.nameColumn, "name-column", "", "column holding the display name")
	flags.StringVar(&opts.record, "record", "", "evaluate only this record key")
	flags.StringVar(&opts.manager, "manager", "", "evaluate only records of this manager code")
	flags.StringVar(&opts.format, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("schemes")
	_ = cmd.MarkFlagRequired("file-a")
	_ = cmd.MarkFlagRequired("key-a")

	return cmd
}

func runEvaluate(cmd *cobra.Command, opts evaluateOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	schemes, err := schemeFactory(cfg).LoadFile(opts.schemes)
	if err != nil {
		return err
	}

	loaded, err := loadRecords(opts)
	if err != nil {
		return err
	}

	mem := memory.NewMemory()
	if err := mem.PutSchemes(schemes); err != nil {
		return err
	}
	mem.ReplaceRecords(loaded)

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	eng := cfg.Engine(logger)

	set, err := incentive.NewRegistry().Reload(cmd.Context(), mem)
	if err != nil {
		return err
	}
	records, err := mem.LoadRecords(cmd.Context())
	if err != nil {
		return err
	}

	if opts.record != "" {
		records = nil
		if r, ok := mem.GetRecord(ingest.CleanKey(opts.record)); ok {
			records = []incentive.Record{r}
		}
	}
	if opts.manager != "" {
		records = ingest.ByManager(records, eng.Resolver(), cfg.ManagerColumns, opts.manager)
	}
	if len(records) == 0 {
		return errors.New("no records matched")
	}

	results, err := eng.EvaluateBatch(cmd.Context(), records, set)
	if err != nil {
		return err
	}

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Key
		if opts.nameColumn != "" {
			if v, ok := eng.ResolveField(r, opts.nameColumn); ok {
				names[i] = v.Text
			}
		}
	}

	if opts.format == "json" {
		return writeJSONResults(cmd.OutOrStdout(), results, names)
	}
	writeTextResults(cmd.OutOrStdout(), results, names)
	return nil
}

func loadRecords(opts evaluateOptions) ([]incentive.Record, error) {
	a, err := readCSVFile(opts.fileA)
	if err != nil {
		return nil, err
	}
	if opts.fileB == "" {
		return a.Records(opts.keyA)
	}

	b, err := readCSVFile(opts.fileB)
	if err != nil {
		return nil, err
	}
	keyB := opts.keyB
	if keyB == "" {
		keyB = opts.keyA
	}
	merged, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: opts.keyA, KeyB: keyB})
	if err != nil {
		return nil, err
	}
	keys := []string{opts.keyA}
	if keyB != opts.keyA {
		keys = append(keys, keyB)
	}
	return merged.Records(keys...)
}

func readCSVFile(path string) (*ingest.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ingest.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func writeTextResults(w io.Writer, results []incentive.AggregateResult, names []string) {
	opts := notify.DefaultOptions()
	for i, agg := range results {
		if i > 0 {
			fmt.Fprintln(w, "----------------------------------------")
		}
		text := notify.ShareText(names[i], agg, opts)
		if text == "" {
			text = fmt.Sprintf("[%s] no results", names[i])
		}
		fmt.Fprintln(w, text)
		for _, d := range agg.Dropped {
			fmt.Fprintf(w, "  ! dropped %s\n", d)
		}
	}
}

func writeJSONResults(w io.Writer, results []incentive.AggregateResult, names []string) error {
	out := make([]api.EvaluationDTO, len(results))
	for i, agg := range results {
		out[i] = api.ToEvaluationDTO(agg, names[i])
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
