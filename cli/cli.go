// Package cli provides the pkixpath command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/georgepadayatti/pkixpath/config"
	"github.com/georgepadayatti/pkixpath/internal/api"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// ErrPathInvalid is returned by validate and build after the report of a
// failed validation has been printed.
var ErrPathInvalid = errors.New("certification path is not valid")

// rootOptions holds the persistent flags and the configuration they select.
type rootOptions struct {
	configFile string
	logLevel   string

	cfg *config.Config
}

// NewRootCommand creates the pkixpath command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pkixpath",
		Short: "Validate and build X.509 certification paths",
		Long: `pkixpath validates X.509 certification paths against RFC 5280, builds paths
from certificate stores and checks revocation with complete and delta CRLs.

Examples:
  # Validate an explicit path, target first
  pkixpath validate --anchor root.pem leaf.pem intermediate.pem

  # Build a path using intermediates and CRLs from files
  pkixpath build --anchor root.pem --cert intermediates.pem --crl ca.crl leaf.pem

  # Serve the HTTP API
  pkixpath serve --config pkixpath.yaml`,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newValidateCommand(opts),
		newBuildCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load reads the configuration file, if any, and applies the log level.
func (o *rootOptions) load() error {
	cfg := config.Default()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.NewConfigError("log.level", err.Error())
	}
	logrus.SetLevel(level)
	o.cfg = cfg
	return nil
}

// Execute runs the command line and exits with a non-zero status on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, ErrPathInvalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		osExit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// The configuration is irrelevant here.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			VersionCommand(cmd.OutOrStdout())
		},
	}
}

// VersionCommand prints version information.
func VersionCommand(w io.Writer) {
	fmt.Fprintf(w, "pkixpath version %s\n", Version)
	fmt.Fprintf(w, "Build time: %s\n", BuildTime)
}

// printReport writes report as indented JSON or as text.
func printReport(w io.Writer, report *api.ValidationReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if !report.Valid {
		e := report.Error
		fmt.Fprintf(w, "Status: INVALID\n")
		fmt.Fprintf(w, "  Kind: %s\n", e.Kind)
		if e.Index >= 0 {
			fmt.Fprintf(w, "  Certificate: %d\n", e.Index)
		}
		if e.Cause != "" {
			fmt.Fprintf(w, "  Cause: %s\n", e.Cause)
		}
		if e.RevocationReason != "" {
			fmt.Fprintf(w, "  Revocation: %s at %s\n", e.RevocationReason, e.RevocationDate.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Fprintf(w, "  Message: %s\n", e.Message)
		return nil
	}

	fmt.Fprintf(w, "Status: VALID\n")
	fmt.Fprintf(w, "Path:\n")
	for i, cert := range report.Path {
		fmt.Fprintf(w, "  [%d] %s\n", i, cert.Subject)
	}
	fmt.Fprintf(w, "Trust anchor: %s\n", report.TrustAnchor)
	if len(report.ValidPolicies) > 0 {
		fmt.Fprintf(w, "Valid policies:\n")
		for _, p := range report.ValidPolicies {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
