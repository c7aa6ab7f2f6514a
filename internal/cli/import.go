package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/seed"
	"github.com/fabulist/fabula/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database  string
	World     string
	Base      bool // import rules/grammars as base (global) scope
	Syntax    string
	Canonical bool
	SeedDir   string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [rules-file]",
		Short: "Import rules or a world seed into the database",
		Long: `Import compiled rules or a CUE world seed into the database.

With a rules file, the file is compiled (or decoded with --canonical) and the
rules are stored under the scope given by --world or --base. Importing refuses
a batch with malformed rules so the stored set always matches the source.

With --seed, the CUE seed directory is loaded and its world, characters, and
grammars are stored. Zones are not persisted; run reloads them from the seed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (or FABULA_DB)")
	cmd.Flags().StringVar(&opts.World, "world", "", "world to import into")
	cmd.Flags().BoolVar(&opts.Base, "base", false, "import rules as base (global) scope")
	cmd.Flags().StringVar(&opts.Syntax, "syntax", "", "source syntax (insimul|ensemble|kismet|tott)")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "treat input as canonical rules JSON")
	cmd.Flags().StringVar(&opts.SeedDir, "seed", "", "CUE seed directory to import (or FABULA_SEED)")

	return cmd
}

func runImport(opts *ImportOptions, args []string, cmd *cobra.Command) error {
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

	if len(args) == 0 {
		seedDir := resolveSeedDir(opts.SeedDir, cfg)
		if seedDir == "" {
			return NewExitError(ExitCommandError, "nothing to import: pass a rules file or --seed")
		}
		return importSeed(opts, formatter, st, seedDir, cmd)
	}
	return importRules(opts, formatter, st, args[0], cmd)
}

func importRules(opts *ImportOptions, formatter *OutputFormatter, st *store.Store, path string, cmd *cobra.Command) error {
	scope, err := importScope(opts)
	if err != nil {
		return err
	}

	var rules []ir.Rule
	if opts.Canonical {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading rules", err)
		}
		rules, err = ir.UnmarshalRules(data)
		if err != nil {
			return WrapExitError(ExitCommandError, "decoding canonical rules", err)
		}
	} else {
		result, err := compileFile(path, opts.Syntax)
		if err != nil {
			return WrapExitError(ExitCommandError, "compile failed", err)
		}
		if len(result.Errors) > 0 {
			for _, ce := range result.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", ce.Error())
			}
			return NewExitError(ExitFailure,
				fmt.Sprintf("refusing to import: %d rule(s) failed to compile", len(result.Errors)))
		}
		rules = result.Rules
	}

	if err := st.ImportRules(cmd.Context(), scope, rules); err != nil {
		return WrapExitError(ExitCommandError, "importing rules", err)
	}

	scopeName := opts.World
	if scope == store.BaseScope {
		scopeName = "base"
	}
	return formatter.Success(fmt.Sprintf("✓ Imported %d rule(s) into %s", len(rules), scopeName))
}

func importSeed(opts *ImportOptions, formatter *OutputFormatter, st *store.Store, seedDir string, cmd *cobra.Command) error {
	s, err := seed.Load(seedDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading seed", err)
	}

	ctx := cmd.Context()
	if err := st.CreateWorld(ctx, s.World.ID, s.World.Name); err != nil {
		return WrapExitError(ExitCommandError, "creating world", err)
	}
	if err := st.ImportCharacters(ctx, s.World.ID, s.Characters); err != nil {
		return WrapExitError(ExitCommandError, "importing characters", err)
	}
	grammarScope := s.World.ID
	if opts.Base {
		grammarScope = store.BaseScope
	}
	if err := st.ImportGrammars(ctx, grammarScope, s.Grammars); err != nil {
		return WrapExitError(ExitCommandError, "importing grammars", err)
	}

	return formatter.Success(fmt.Sprintf("✓ Imported world %s: %d character(s), %d grammar(s)",
		s.World.ID, len(s.Characters), len(s.Grammars)))
}

// importScope resolves the rule scope from the --world/--base flags.
func importScope(opts *ImportOptions) (string, error) {
	switch {
	case opts.Base && opts.World != "":
		return "", NewExitError(ExitCommandError, "--base and --world are mutually exclusive")
	case opts.Base:
		return store.BaseScope, nil
	case opts.World != "":
		return opts.World, nil
	default:
		return "", NewExitError(ExitCommandError, "pass --world or --base to scope the rules")
	}
}
