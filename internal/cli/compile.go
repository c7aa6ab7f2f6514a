package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/compiler"
	"github.com/fabulist/fabula/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Syntax string // source syntax; inferred from the file extension when empty
	Output string // output file path
}

// CompilationResult is the JSON payload for a compile run.
type CompilationResult struct {
	Rules  []ir.Rule `json:"rules"`
	Hash   string    `json:"hash"`
	Errors []string  `json:"errors,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules-file>",
		Short: "Compile rule source to canonical rules",
		Long: `Compile rule source text into canonical rule JSON.

Supported syntaxes: insimul, ensemble, kismet, tott. When --syntax is not
given, the syntax is inferred from the file extension. Rules that fail to
parse are reported individually; their siblings still compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Syntax, "syntax", "", "source syntax (insimul|ensemble|kismet|tott)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path for canonical JSON")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := compileFile(path, opts.Syntax)
	if err != nil {
		_ = formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "compile failed", err)
	}

	hash, err := ir.RuleSetHash(result.Rules)
	if err != nil {
		return WrapExitError(ExitCommandError, "hashing compiled rules", err)
	}

	payload := CompilationResult{Rules: result.Rules, Hash: hash}
	for _, ce := range result.Errors {
		payload.Errors = append(payload.Errors, ce.Error())
	}

	if opts.Output != "" {
		data, err := ir.MarshalRules(result.Rules)
		if err != nil {
			return WrapExitError(ExitCommandError, "marshaling rules", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if err := outputCompileResult(formatter, payload, opts.Output); err != nil {
		return err
	}

	// Partial success: compiled rules were emitted, but the batch had
	// malformed rules in it.
	if len(result.Errors) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d rule(s) failed to compile", len(result.Errors)))
	}
	return nil
}

func outputCompileResult(formatter *OutputFormatter, payload CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(payload)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d rule(s)  hash %s\n", len(payload.Rules), payload.Hash)
	for _, rule := range payload.Rules {
		fmt.Fprintf(formatter.Writer, "  %s  priority=%d likelihood=%g  %d condition(s), %d effect(s)\n",
			rule.ID, rule.Priority, rule.Likelihood, len(rule.Conditions), len(rule.Effects))
	}
	if len(payload.Errors) > 0 {
		fmt.Fprintf(formatter.Writer, "\n✗ %d rule(s) failed:\n", len(payload.Errors))
		for _, msg := range payload.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical rules to %s\n", outputFile)
	}
	return nil
}

// compileFile reads and compiles one rule source file.
func compileFile(path, syntax string) (*compiler.Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	format, err := resolveSyntax(path, syntax)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(source, format)
}

// resolveSyntax picks the source format from the --syntax flag, falling back
// to the file extension.
func resolveSyntax(path, syntax string) (ir.SourceFormat, error) {
	if syntax != "" {
		format := ir.SourceFormat(syntax)
		if !ir.ValidFormats[format] {
			return "", fmt.Errorf("unknown syntax %q", syntax)
		}
		return format, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".insimul", ".rules":
		return ir.FormatInsimul, nil
	case ".json":
		return ir.FormatEnsemble, nil
	case ".kismet", ".pl":
		return ir.FormatKismet, nil
	case ".tott", ".py":
		return ir.FormatTott, nil
	default:
		return "", fmt.Errorf("cannot infer syntax from %s: pass --syntax", filepath.Base(path))
	}
}
