package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/store"
)

// VersionsOptions holds flags shared by the versions subcommands.
type VersionsOptions struct {
	*RootOptions
	Database string
	Out      string
}

// SaveVersionResult is the versions save payload.
type SaveVersionResult struct {
	Version store.RuleVersion `json:"version"`
	Created bool              `json:"created"`
}

// NewVersionsCommand creates the versions command and its subcommands.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Save, list and restore rule document versions",
		Long: `Keep a numbered history of rule documents in the database.

A save whose rule payload hashes the same as the latest version is a
no-op. "show previous" returns the rollback target; --out writes its
rules to a JSON file that every command accepts as a rules file.

Example:
  ingestlab versions save rules.yaml --db ./live.db
  ingestlab versions list --db ./live.db
  ingestlab versions show previous --db ./live.db --out rollback.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config database)")

	cmd.AddCommand(&cobra.Command{
		Use:           "save [rules]",
		Short:         "Record the rule document as the next version",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaveVersion(opts, args, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List saved versions, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListVersions(opts, cmd)
		},
	})
	show := &cobra.Command{
		Use:           "show <number|latest|previous>",
		Short:         "Show one saved version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowVersion(opts, args[0], cmd)
		},
	}
	show.Flags().StringVar(&opts.Out, "out", "", "write the version's rules to this JSON file")
	cmd.AddCommand(show)

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runSaveVersion(opts *VersionsOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rulesPath, _, err := resolvePaths(opts.RootOptions, args, false)
	if err != nil {
		return commandError(formatter, "failed to load rules", err)
	}
	loaded, err := LoadRules(rulesPath)
	if err != nil {
		return commandError(formatter, "failed to load rules", err)
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	v, created, err := st.SaveVersion(commandContext(cmd), loaded.Raw)
	if err != nil {
		return commandError(formatter, "failed to save version", &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
	}
	result := SaveVersionResult{Version: v, Created: created}
	return formatter.Report(result, func(w io.Writer) {
		if created {
			fmt.Fprintf(w, "saved version %d (%s)\n", v.Number, shortHash(v.Hash))
			return
		}
		fmt.Fprintf(w, "unchanged, latest is version %d (%s)\n", v.Number, shortHash(v.Hash))
	})
}

func runListVersions(opts *VersionsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	versions, err := st.ListVersions(commandContext(cmd))
	if err != nil {
		return commandError(formatter, "failed to list versions", err)
	}
	return formatter.Report(versions, func(w io.Writer) {
		if len(versions) == 0 {
			fmt.Fprintln(w, "no saved versions")
			return
		}
		for _, v := range versions {
			fmt.Fprintf(w, "%4d  %s  %s\n", v.Number, shortHash(v.Hash), v.CreatedAt.Format(time.RFC3339))
		}
	})
}

func runShowVersion(opts *VersionsOptions, which string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	ctx := commandContext(cmd)
	var (
		v  store.RuleVersion
		ok bool
	)
	switch which {
	case "latest":
		v, ok, err = st.LatestVersion(ctx)
	case "previous":
		v, ok, err = st.PreviousVersion(ctx)
	default:
		n, convErr := strconv.Atoi(which)
		if convErr != nil || n < 1 {
			return commandError(formatter, "invalid version",
				&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid version %q: want a number, latest or previous", which)})
		}
		v, ok, err = st.GetVersion(ctx, n)
	}
	if err != nil {
		return commandError(formatter, "failed to read version", err)
	}
	if !ok {
		return commandError(formatter, "version not found",
			&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no %s version saved", which)})
	}

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, append([]byte(v.Rules), '\n'), 0o644); err != nil {
			return commandError(formatter, "failed to write rules",
				&LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		formatter.VerboseLog("Wrote version %d rules to %s", v.Number, opts.Out)
	}
	return formatter.Report(v, func(w io.Writer) {
		fmt.Fprintf(w, "version %d  %s  %s\n%s\n", v.Number, shortHash(v.Hash), v.CreatedAt.Format(time.RFC3339), v.Rules)
	})
}
