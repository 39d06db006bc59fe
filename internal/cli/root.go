package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // --config; empty means ./ingestlab.yaml if present

	// Config is loaded in PersistentPreRunE. Commands read defaults from it
	// and let their own flags win.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// NewRootCommand creates the root command for the ingestlab CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ingestlab",
		Short: "ingestlab - rule-driven HTML ingestion",
		Long: `Turn crawled HTML documents into structured rows with a declarative rule document.

Validate rules against real documents, measure field coverage, check quality
gates and constraints, plan destination schema changes, and commit rows only
through a simulate-then-apply step that writes an audit log.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
				slog.SetDefault(slog.New(handler))
			}
			return loadConfig(opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "project file (default ./"+config.DefaultFileName+" if present)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewCoverageCommand(opts))
	cmd.AddCommand(NewCoerceCommand(opts))
	cmd.AddCommand(NewGatesCommand(opts))
	cmd.AddCommand(NewConstraintsCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewSandboxCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewVersionsCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultFileName)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Path != "" {
		slog.Debug("config loaded", "path", cfg.Path)
	}
	opts.Config = cfg
	return nil
}

// settings returns the loaded project config, or defaults when the command
// runs without PersistentPreRunE (direct runX calls in tests).
func (o *RootOptions) settings() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
