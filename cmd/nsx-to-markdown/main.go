package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// cfg holds the resolved configuration once PersistentPreRunE has run.
	cfg config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nsx-to-markdown",
	Short: "Convert Synology Note Station exports to Markdown or HTML",
	Long: `nsx-to-markdown reads .nsx archives exported from Synology Note Station and
writes every notebook as a folder of Markdown (or HTML) notes with their
attachments next to them. Links between notes and to attachments keep working.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	def := config.Default()
	flags.StringVar(&configFile, "config", "nsx-to-markdown.yaml", "config file")
	flags.StringP("output", "o", def.Output, "output directory")
	flags.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
	flags.String("path-syntax", def.PathSyntax, "path rules: auto, posix or windows")
	flags.StringSlice("ignore-link", def.IgnoreLinks, "glob pattern of link targets to leave untouched (repeatable)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(config.DefaultEnvFile); err != nil {
		return err
	}
	loaded, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := logger.Init(loaded.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", config.ErrInvalidConfig, err)
	}
	cfg = loaded
	logger.Debug("configuration loaded", map[string]interface{}{
		"file":   configFile,
		"output": cfg.Output,
		"format": cfg.Format,
	})
	return nil
}

// errIncomplete is returned when a run skipped notes or failed an archive.
var errIncomplete = errors.New("conversion finished with errors")
