package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Syntax    string
	Canonical bool // input is canonical rules JSON, not rule source
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Validate rule source or canonical rules",
		Long: `Validate a rule file without producing output.

By default the file is compiled as rule source and every per-rule error is
reported. With --canonical the file is decoded as canonical rule JSON and
each rule is checked against the canonical constraints.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Syntax, "syntax", "", "source syntax (insimul|ensemble|kismet|tott)")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "treat input as canonical rules JSON")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var (
		valid    int
		messages []string
	)
	if opts.Canonical {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading rules", err)
		}
		rules, err := ir.UnmarshalRules(data)
		if err != nil {
			_ = formatter.Error("DECODE_FAILED", err.Error(), nil)
			return WrapExitError(ExitCommandError, "decoding canonical rules", err)
		}
		for _, rule := range rules {
			if err := rule.Validate(); err != nil {
				messages = append(messages, fmt.Sprintf("rule %s: %v", rule.ID, err))
				continue
			}
			valid++
		}
	} else {
		result, err := compileFile(path, opts.Syntax)
		if err != nil {
			_ = formatter.Error("COMPILE_FAILED", err.Error(), nil)
			return WrapExitError(ExitCommandError, "compile failed", err)
		}
		valid = len(result.Rules)
		for _, ce := range result.Errors {
			messages = append(messages, ce.Error())
		}
	}

	if len(messages) > 0 {
		if formatter.Format == "json" {
			_ = formatter.Error("INVALID_RULES",
				fmt.Sprintf("%d rule(s) invalid", len(messages)), messages)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %d valid, %d invalid\n", valid, len(messages))
			for _, msg := range messages {
				fmt.Fprintf(formatter.Writer, "  %s\n", msg)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d rule(s) invalid", len(messages)))
	}

	return formatter.Success(fmt.Sprintf("✓ %d rule(s) valid", valid))
}
