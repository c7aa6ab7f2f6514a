package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/tracker"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Entity string
	From   int64
	To     int64
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <trace-file>",
		Short: "Diff an entity's attributes between two timesteps",
		Long: `Diff one entity's attributes between two timesteps of an exported
execution log (as written by run --trace; a .zst suffix is decompressed).

Attributes present on only one side report "<absent>" for the missing side.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "entity to diff (required)")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "timestep to diff from")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "timestep to diff to (required)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runDiff(opts *DiffOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	log, err := readTrace(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading trace", err)
	}

	changes, err := tracker.FromLog(log).Diff(opts.Entity, opts.From, opts.To)
	if err != nil {
		return WrapExitError(ExitCommandError, "diffing snapshots", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(changes)
	}

	if len(changes) == 0 {
		fmt.Fprintf(formatter.Writer, "No changes for %s between t=%d and t=%d\n",
			opts.Entity, opts.From, opts.To)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%s: t=%d → t=%d\n", opts.Entity, opts.From, opts.To)
	for _, ch := range changes {
		fmt.Fprintf(formatter.Writer, "  %s: %s → %s\n",
			ch.Attribute, renderValue(ch.OldValue), renderValue(ch.NewValue))
	}
	return nil
}

// readTrace loads an exported execution log; a .zst suffix selects the
// compressed form.
func readTrace(path string) (ir.ExecutionLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.ExecutionLog{}, err
	}
	if strings.HasSuffix(path, ".zst") {
		return tracker.ReadCompressed(data)
	}
	var log ir.ExecutionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return ir.ExecutionLog{}, fmt.Errorf("decode execution log: %w", err)
	}
	return log, nil
}

// renderValue formats a value for the text diff. The canonical JSON form is
// already the most readable rendering, absent sentinel included.
func renderValue(v ir.Value) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
