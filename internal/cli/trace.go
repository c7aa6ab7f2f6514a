package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	World    string
	Limit    int
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a world's truth timeline",
		Long: `Show the persisted truths of a world in timestep order.

Each truth records a rule firing that generated narrative: the timestep, the
rule, the narrative text, and the entities it affected.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (or FABULA_DB)")
	cmd.Flags().StringVar(&opts.World, "world", "", "world to trace (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many truths (0 = all)")
	_ = cmd.MarkFlagRequired("world")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	dbPath, err := resolveDatabase(opts.Database, cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer st.Close()

	truths, err := st.GetTruthsByWorld(cmd.Context(), opts.World)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading truths", err)
	}
	if opts.Limit > 0 && len(truths) > opts.Limit {
		truths = truths[:opts.Limit]
	}

	if formatter.Format == "json" {
		return formatter.Success(truths)
	}

	if len(truths) == 0 {
		fmt.Fprintf(formatter.Writer, "No truths recorded for world %s\n", opts.World)
		return nil
	}
	for _, t := range truths {
		fmt.Fprintf(formatter.Writer, "[t=%d] %s (%s): %s\n", t.Timestep, t.RuleName, t.RuleID, t.Narrative)
		if len(t.Affected) > 0 {
			fmt.Fprintf(formatter.Writer, "       affected: %s\n", strings.Join(t.Affected, ", "))
		}
	}
	return nil
}
