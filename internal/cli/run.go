package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabulist/fabula/internal/engine"
	"github.com/fabulist/fabula/internal/grammar"
	"github.com/fabulist/fabula/internal/seed"
	"github.com/fabulist/fabula/internal/store"
	"github.com/fabulist/fabula/internal/tracker"
	"github.com/fabulist/fabula/internal/world"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	World    string
	Steps    int
	RNGSeed  int64
	SeedDir  string
	Trace    string

	X, Y    float64
	Energy  float64
	Action  string
	NearNPC bool

	// TruthGenerator allows overriding the truth ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TruthGenerator engine.TruthIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation against a stored world",
		Long: `Run a fixed number of simulation steps against a stored world.

Base and world-scoped rules, characters, and grammars are loaded from the
database. Zones live in the CUE seed, not the database; pass --seed (or set
FABULA_SEED) to register them. Truths generated by fired rules are persisted,
and --trace exports the full execution log (a .zst suffix compresses it).

Example:
  fabula run --db ./fabula.db --world demo --steps 20 --trace run.json
  fabula run --db ./fabula.db --world demo --rng-seed 7 --energy 80`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (or FABULA_DB)")
	cmd.Flags().StringVar(&opts.World, "world", "", "world to simulate (required)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 10, "number of steps to run")
	cmd.Flags().Int64Var(&opts.RNGSeed, "rng-seed", 1, "seed for the deterministic RNG")
	cmd.Flags().StringVar(&opts.SeedDir, "seed", "", "CUE seed directory for zones (or FABULA_SEED)")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "write execution log to this file")
	cmd.Flags().Float64Var(&opts.X, "x", 0, "player x position")
	cmd.Flags().Float64Var(&opts.Y, "y", 0, "player y position")
	cmd.Flags().Float64Var(&opts.Energy, "energy", 0, "player energy (unset means unknown)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "action being attempted")
	cmd.Flags().BoolVar(&opts.NearNPC, "near-npc", false, "player is near an NPC")
	_ = cmd.MarkFlagRequired("world")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg, err := LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	dbPath, err := resolveDatabase(opts.Database, cfg)
	if err != nil {
		return err
	}

	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	sim, err := buildSimulation(parentCtx, opts, cfg, st)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown between steps.
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current step", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sc := engine.StepContext{
		X:          opts.X,
		Y:          opts.Y,
		ActionType: opts.Action,
		NearNPC:    opts.NearNPC,
	}
	sc.InSettlement = sim.World().InSettlement(sc.X, sc.Y)
	if cmd.Flags().Changed("energy") {
		energy := opts.Energy
		sc.PlayerEnergy = &energy
	}

	slog.Info("run starting", "world", opts.World, "steps", opts.Steps, "rng_seed", opts.RNGSeed)
	results, runErr := sim.Run(ctx, opts.Steps, sc)
	cancelled := engine.IsCancelled(runErr)
	if runErr != nil && !cancelled {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}

	// Persist what the run produced, even after a mid-run cancel: completed
	// steps are valid history.
	persistCtx := context.WithoutCancel(parentCtx)
	truths := sim.Truths()
	for _, truth := range truths {
		if err := st.CreateTruth(persistCtx, truth); err != nil {
			return WrapExitError(ExitCommandError, "persisting truth", err)
		}
	}

	if opts.Trace != "" {
		if err := writeTrace(sim.Tracker(), opts.Trace); err != nil {
			return WrapExitError(ExitCommandError, "writing trace", err)
		}
	}

	fired := 0
	for _, res := range results {
		fired += len(res.Records)
	}
	summary := fmt.Sprintf("Ran %d step(s): %d rule firing(s), %d truth(s)", len(results), fired, len(truths))
	if restricted := sim.RestrictedActions(); len(restricted) > 0 {
		summary += fmt.Sprintf(", restricted actions: %s", strings.Join(restricted, ", "))
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.Success(summary); err != nil {
		return err
	}

	if cancelled {
		return NewExitError(ExitFailure, "run cancelled")
	}
	slog.Info("run finished", "status", sim.Status(), "timestep", sim.Timestep())
	return nil
}

// buildSimulation loads the world's stored state and assembles an engine.
func buildSimulation(ctx context.Context, opts *RunOptions, cfg Config, st *store.Store) (*engine.Simulation, error) {
	baseRules, err := st.GetBaseRules(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading base rules", err)
	}
	worldRules, err := st.GetRulesByWorld(ctx, opts.World)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading world rules", err)
	}
	chars, err := st.GetCharactersByWorld(ctx, opts.World)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading characters", err)
	}
	baseGrammars, err := st.GetBaseGrammars(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading base grammars", err)
	}
	worldGrammars, err := st.GetGrammarsByWorld(ctx, opts.World)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading world grammars", err)
	}
	slog.Info("world loaded",
		"world", opts.World,
		"base_rules", len(baseRules),
		"world_rules", len(worldRules),
		"characters", len(chars),
		"grammars", len(baseGrammars)+len(worldGrammars),
	)

	w := world.New(opts.World)
	for _, c := range chars {
		w.AddEntity(c)
	}
	if seedDir := resolveSeedDir(opts.SeedDir, cfg); seedDir != "" {
		s, err := seed.Load(seedDir)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "loading seed", err)
		}
		for _, z := range s.Zones {
			w.RegisterZone(z)
		}
	}

	simOpts := []engine.SimulationOption{
		engine.WithRNG(engine.NewRNG(opts.RNGSeed)),
		engine.WithExpander(grammar.New(grammar.WithMaxDepth(cfg.MaxDepth))),
	}
	if opts.TruthGenerator != nil {
		simOpts = append(simOpts, engine.WithTruthIDs(opts.TruthGenerator))
	}
	sim := engine.New(w, tracker.New(), simOpts...)
	sim.RegisterBaseRules(baseRules)
	sim.RegisterWorldRules(worldRules)
	for _, g := range baseGrammars {
		sim.RegisterGrammar(g)
	}
	for _, g := range worldGrammars {
		sim.RegisterGrammar(g)
	}
	return sim, nil
}

// writeTrace exports the execution log; a .zst suffix selects the
// compressed form.
func writeTrace(tr *tracker.Tracker, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".zst") {
		data, err = tracker.ExportCompressed(tr.Log())
	} else {
		data, err = tracker.Export(tr.Log())
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
