// Command connectcore manages the connects, leads, organizations and
// stakeholders of a partnership workspace from the command line.
package main

import (
	"connectcore/internal/config"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "connectcore",
		Short: "Manage a startup and corporate partnership workspace",
		Long: `connectcore keeps the connects, leads, organizations and stakeholders of a
partnership workspace and runs the workflows around them.

Configuration is read from connectcore.yaml, a .env file and CONNECTCORE_*
environment variables; flags win over all of them.

Examples:
  connectcore list connects --search rocket
  connectcore import leads leads.csv
  connectcore export startups
  connectcore delete stakeholder sh-123
  connectcore summarize c-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Path to a config file (default ./connectcore.yaml when present)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")
	pf.StringVar(&a.metricsOut, "metrics-out", "", "Write operation metrics in Prometheus text format to this file")
	pf.StringVar(&a.traceOut, "trace-out", "", "Write operation trace spans as JSON to this file")
	persistent := []struct {
		name, key, usage string
	}{
		{"storage", config.KeyStorageDriver, "Storage driver: memory, sqlite or postgres"},
		{"sqlite-path", config.KeyStorageSQLitePath, "SQLite database file"},
		{"postgres-dsn", config.KeyStoragePostgresDSN, "PostgreSQL connection string"},
		{"blob", config.KeyBlobDriver, "Export storage driver: fs, s3 or memory"},
		{"blob-root", config.KeyBlobFSRoot, "Directory for exports with the fs driver"},
		{"user", config.KeyUserEmail, "Email of the acting user"},
	}
	for _, f := range persistent {
		pf.String(f.name, "", f.usage)
		a.flagKeys = append(a.flagKeys, flagKey{flag: f.name, key: f.key})
	}

	root.AddCommand(
		newListCmd(a),
		newTrashCmd(a),
		newStatsCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newExportsCmd(a),
		newDeleteCmd(a),
		newRestoreCmd(a),
		newPurgeCmd(a),
		newSummarizeCmd(a),
		newInsightsCmd(a),
		newSettingsCmd(a),
	)
	return root
}

func run(ctx context.Context, args []string, out io.Writer) error {
	a := newApp(out)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
