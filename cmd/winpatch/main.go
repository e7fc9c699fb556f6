package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archmachina/winpatch/internal/catalog"
	"github.com/archmachina/winpatch/internal/config"
	"github.com/archmachina/winpatch/internal/logging"
	"github.com/archmachina/winpatch/internal/patching"
	"github.com/archmachina/winpatch/internal/precheck"
	"github.com/archmachina/winpatch/internal/wua"
)

// logKeepLines bounds the log file to its most recent lines at each run start.
const logKeepLines = 2000

var (
	version = "0.1.0"
	cfgFile string
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "winpatch",
	Short: "Windows patching orchestrator",
	Long: `winpatch searches for pending Windows updates, optionally against an
offline scan catalog, installs those older than a configurable age threshold,
and schedules a delayed reboot when one is required and permitted.`,
	Run: func(cmd *cobra.Command, args []string) {
		runPatch()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("winpatch v%s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (JSON)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "search and report only; skip download, install, and reboot")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPatch() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		logFile, err := logging.OpenLogFile(cfg.LogFile, logKeepLines)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
		logging.Init("text", "info", logFile)
	} else {
		logging.Init("text", "info", os.Stderr)
	}

	log := logging.L("winpatch")
	log.Info("starting patch run", "version", version, "dryRun", dryRun)

	checks := precheck.Run(precheck.Options{
		WorkDir:   cfg.PatchDir,
		MinFreeMB: cfg.FreeSpaceMinMB,
	})
	for _, check := range checks.Checks {
		log.Info("precondition", "check", check.Name, "passed", check.Passed, "detail", check.Message)
	}
	if err := checks.FirstError(); err != nil {
		log.Error("preconditions not met", "error", err)
		os.Exit(1)
	}

	runner := patching.NewRunner(
		wua.NewSession(),
		catalog.New(cfg.CabDownloadUri, cfg.CabPath()),
		patching.Options{
			UpdateCab:          cfg.UpdateCab,
			UseOfflineScan:     cfg.UseOfflineScan,
			DryRun:             dryRun,
			AgeThresholdDays:   cfg.AgeThreshold,
			CanReboot:          cfg.CanReboot,
			OfflineServiceName: cfg.OfflineServiceName,
			CabPath:            cfg.CabPath(),
			RebootDelaySec:     cfg.RebootDelaySec,
		},
	)

	// Orchestration failures are logged, not propagated: the process still
	// exits zero so schedulers treat the run as delivered.
	if err := runner.Run(context.Background()); err != nil {
		log.Error("patch run failed", "error", err)
		return
	}

	log.Info("patch run complete")
}
