package main

import (
	"connectcore/internal/adapters/csvio"
	"connectcore/internal/blob"
	"connectcore/internal/core"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var showHeaders bool
	cmd := &cobra.Command{
		Use:   "import <view> <file.csv>",
		Short: "Create or update records from a CSV file",
		Long: `Create or update records from a CSV file. Rows with an ID matching an
existing record update it; other rows create new records.

Importable views: connects, leads, startups, corporates, stakeholders.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showHeaders {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseView(args[0])
			if err != nil {
				return err
			}
			if showHeaders {
				a.printf("%s\n", csvio.HeaderDisclaimer(v))
				return nil
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				parser := csvio.Parser{Now: s.svc.Now, Logger: a.logger.Named("csv")}
				rows, err := parser.Parse(v, f, s.ws.Index())
				if err != nil {
					return fmt.Errorf("%s: %w", csvio.FailedTitle, err)
				}
				if len(rows) == 0 {
					return fmt.Errorf("%s: %s", csvio.EmptyTitle, csvio.EmptyMessage)
				}
				report, err := s.svc.Import(ctx, v, rows)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(report)
				}
				title, message := report.Summary()
				a.printf("%s\n%s\n", title, message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showHeaders, "headers", false, "Print the expected headers of the view and exit")
	return cmd
}

func (a *app) publisher(ctx context.Context) (*csvio.Publisher, error) {
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, err
	}
	return csvio.NewPublisher(store,
		csvio.WithURLExpiry(a.cfg.URLExpiry),
		csvio.WithLogger(a.logger.Named("export")),
	), nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		opts listOptions
		ids  []string
	)
	cmd := &cobra.Command{
		Use:   "export <view>",
		Short: "Export the records of a view as CSV to the export store",
		Long: `Export the records of a view as CSV. Search, filters and sort apply as in
list; --id restricts the export to a selection.

Exportable views: connects, leads, startups, corporates, stakeholders.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseView(args[0])
			if err != nil {
				return err
			}
			if !slices.Contains(csvio.ExportableViews(), v) {
				return csvio.UnsupportedViewError{View: v}
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				idx := s.ws.Index()
				items := core.Query(idx, opts.request(v)).Items
				if len(ids) > 0 {
					items = selectItems(items, ids)
				}
				info, err := pub.Publish(ctx, v, items, idx, len(ids) > 0)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(info)
				}
				a.printf("Exported %s rows to %s\n%s\n", info.Metadata["rows"], info.Key, info.URL)
				return nil
			})
		},
	}
	addQueryFlags(cmd, &opts)
	cmd.Flags().StringSliceVar(&ids, "id", nil, "Export only these record ids")
	return cmd
}

func selectItems(items []core.Item, ids []string) []core.Item {
	out := items[:0:0]
	for _, it := range items {
		if slices.Contains(ids, it.ID()) {
			out = append(out, it)
		}
	}
	return out
}

func newExportsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exports [view]",
		Short: "List published exports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v core.View
			if len(args) == 1 {
				var err error
				if v, err = parseView(args[0]); err != nil {
					return err
				}
			}
			pub, err := a.publisher(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := pub.List(cmd.Context(), v)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(infos)
			}
			for _, info := range infos {
				a.printf("%s\t%d bytes\t%s\n", info.Key, info.Size, info.LastModified.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
