package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/rivalwatch/internal/config"
	"github.com/TobiSchelling/rivalwatch/internal/database"
	"github.com/TobiSchelling/rivalwatch/internal/factcache"
	"github.com/TobiSchelling/rivalwatch/internal/llm"
	"github.com/TobiSchelling/rivalwatch/internal/pipeline"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "rivalwatch",
	Short:        "Competitor news monitoring",
	Long:         "rivalwatch collects competitor news, caches extracted facts, and reports strategic signals.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("info")

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		setupLogging(cfg.Logging.Level)
		log.Debug("loaded config", "path", path)

		if cmd.Name() == "status" {
			return nil
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modeCmd(pipeline.ModeCache, "cache", "Collect news and cache extracted facts"))
	rootCmd.AddCommand(modeCmd(pipeline.ModeStrategy, "report", "Build the strategy report from cached facts"))
	rootCmd.AddCommand(modeCmd(pipeline.ModeDraft, "draft", "Send a digest of recent news without analysis"))
}

// setupLogging routes logs to stderr so stdout stays free for reports.
func setupLogging(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		ReportCaller:    verbose,
		Level:           lvl,
	}))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rivalwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/rivalwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure competitors, the LLM provider and the Slack webhook.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fact cache and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		facts, err := factcache.New(cfg.FactDir()).Count()
		if err != nil {
			return fmt.Errorf("counting facts: %w", err)
		}

		fmt.Printf("Competitors: %s\n", strings.Join(cfg.CompetitorNames(), ", "))
		fmt.Printf("Modes: %v\n\n", pipeline.Modes(cfg.Pipeline))
		fmt.Println("Fact cache:")
		fmt.Printf("  Location: %s\n", cfg.FactDir())
		fmt.Printf("  Facts: %d\n", facts)
		fmt.Println("\nRuns:")
		fmt.Printf("  Total: %d (cache %d, strategy %d, draft %d)\n", stats.TotalRuns,
			stats.ByMode[string(pipeline.ModeCache)], stats.ByMode[string(pipeline.ModeStrategy)],
			stats.ByMode[string(pipeline.ModeDraft)])

		recent, err := db.GetRecentRuns(5)
		if err != nil {
			return err
		}
		for _, r := range recent {
			period := ""
			if r.PeriodID != nil {
				period = database.FormatPeriodDisplay(*r.PeriodID)
			}
			fmt.Printf("  %s  %-8s %-11s %s\n", r.StartedAt, r.Mode, r.State, period)
			if r.Error != nil {
				fmt.Printf("      error: %s\n", *r.Error)
			}
		}
		return nil
	},
}

// --- run commands ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the modes selected by fact_cache_mode / weekly_strategy_mode (draft when neither is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModes(pipeline.Modes(cfg.Pipeline))
	},
}

func modeCmd(mode pipeline.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModes([]pipeline.Mode{mode})
		},
	}
}

func runModes(modes []pipeline.Mode) error {
	var provider llm.Provider
	if pipeline.NeedsLLM(modes) {
		p, err := llm.CreateProvider(cfg.LLM)
		if err != nil {
			return err
		}
		provider = p
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe := pipeline.NewFromConfig(cfg, db, provider)

	var failed []string
	for _, mode := range modes {
		result := pipe.Run(ctx, mode)
		printSteps(result)
		if result.State == pipeline.Failed {
			failed = append(failed, string(mode))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("run failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func printSteps(r *pipeline.RunResult) {
	fmt.Fprintf(os.Stderr, "\n%s run (%s)\n", r.Mode, r.State)
	for i, step := range r.Steps {
		fmt.Fprintf(os.Stderr, "  %d. %s: ", i+1, step.Name)
		if step.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", step.Err)
		} else {
			fmt.Fprintln(os.Stderr, step.Summary)
		}
	}
	if r.Err != nil {
		fmt.Fprintf(os.Stderr, "  error: %v\n", r.Err)
	}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
