// Package cli builds the lodestone command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/lodestone/internal/version"
	"github.com/arthur-debert/lodestone/pkg/config"
	"github.com/arthur-debert/lodestone/pkg/install"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/ui"
)

// globalOptions carries the persistent flags every command sees.
type globalOptions struct {
	verbosity  int
	configFile string
	root       string
	format     string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "lodestone",
		Short: "A game version resolver and artifact downloader",
		Long: `lodestone resolves layered version descriptors (vanilla plus any chain of
mod loaders) into a single merged view, derives the full set of artifacts a
version needs, and downloads whatever is missing: verified, resumable, and
in parallel.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/lodestone/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "Instance root directory (default is the configured layout root, then the current directory)")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "auto", "Output format: auto, term, text, json")

	rootCmd.AddCommand(newInstallCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))
	rootCmd.AddCommand(newVerifyCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newInstaller loads config, applies flag overrides, and composes the
// pipeline for the chosen instance root.
func (o *globalOptions) newInstaller(overrides map[string]interface{}) (*install.Installer, error) {
	cfg, err := config.Load(o.configFile, overrides)
	if err != nil {
		return nil, err
	}
	root := o.root
	if root == "" && cfg.Layout.Root == "" {
		root = "."
	}
	return install.New(cfg, root)
}

func (o *globalOptions) outputFormat() (ui.Format, error) {
	format, err := ui.ParseFormat(o.format)
	if err != nil {
		return ui.FormatAuto, err
	}
	if format == ui.FormatAuto {
		format = ui.DetectFormat(os.Stdout)
	}
	return format, nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted install persists its partial state instead of dying mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newInstallCmd(opts *globalOptions) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Download and verify everything a version needs",
		Long: `Install resolves the version's descriptor chain, works out which
artifacts are missing or invalid on disk, and downloads them with checksum
verification. Interrupted installs resume where they left off.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]interface{}{}
			if concurrency > 0 {
				overrides["download.concurrency"] = concurrency
			}
			inst, err := opts.newInstaller(overrides)
			if err != nil {
				return err
			}
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			view := ui.NewProgressView(format, os.Stdout)
			unsubscribe := inst.Reporter().Subscribe(view)
			defer unsubscribe()

			ctx, cancel := signalContext()
			defer cancel()

			report, err := inst.Install(ctx, args[0])
			view.Close()
			if err != nil {
				return err
			}
			if err := ui.RenderReport(os.Stdout, format, report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("install of %s did not complete", args[0])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of parallel downloads (overrides config)")
	return cmd
}

func newResolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <version>",
		Short: "Print a version's fully merged descriptor",
		Long: `Resolve follows the version's inheritance chain and prints the single
merged descriptor as JSON, exactly as install would see it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := opts.newInstaller(nil)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			desc, err := inst.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(desc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <version>",
		Short: "Check a version's artifacts without downloading",
		Long: `Verify checks every artifact the version needs against its expected
size and checksum and reports what is missing or invalid. Nothing is
downloaded or modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := opts.newInstaller(nil)
			if err != nil {
				return err
			}
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			p, err := inst.Verify(ctx, args[0])
			if err != nil {
				return err
			}
			if err := ui.RenderVerify(os.Stdout, format, p); err != nil {
				return err
			}
			if len(p.Tasks) > 0 {
				return fmt.Errorf("%d artifact(s) missing or invalid", len(p.Tasks))
			}
			return nil
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the fully merged configuration as TOML: built-in
defaults, the user config file, and LODESTONE_* environment variables, in
ascending precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, nil)
			if err != nil {
				return err
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lodestone version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Printf("Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Printf("Built:  %s\n", version.Date)
			}
		},
	}
}
