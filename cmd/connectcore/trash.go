package main

import (
	"connectcore/internal/core"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var kindAliases = map[string]core.Kind{
	"connect":      core.KindConnect,
	"connects":     core.KindConnect,
	"lead":         core.KindLead,
	"leads":        core.KindLead,
	"organization": core.KindOrganization,
	"org":          core.KindOrganization,
	"startup":      core.KindOrganization,
	"corporate":    core.KindOrganization,
	"stakeholder":  core.KindStakeholder,
	"stakeholders": core.KindStakeholder,
}

func parseKind(name string) (core.Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown record kind %q (expected connect, lead, organization or stakeholder)", name)
}

func itemRefs(args []string) ([]core.ItemRef, error) {
	kind, err := parseKind(args[0])
	if err != nil {
		return nil, err
	}
	refs := make([]core.ItemRef, 0, len(args)-1)
	for _, id := range args[1:] {
		refs = append(refs, core.ItemRef{Kind: kind, ID: id})
	}
	return refs, nil
}

type bulkFunc func(s *core.Service, ctx context.Context, items []core.ItemRef) core.BulkReport

func newBulkCmd(a *app, use, short string, op bulkFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <kind> <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := itemRefs(args)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				report := op(s.svc, ctx, refs)
				if a.jsonOutput {
					return a.printJSON(report)
				}
				a.printf("%s\n", report.Summary())
				for _, b := range report.Blocked {
					a.printf("  blocked %s: %s\n", b.ID, b.Message())
				}
				for _, f := range report.Failed {
					a.printf("  failed %s: %s\n", f.Item.ID, f.Err)
				}
				if len(report.Succeeded) == 0 {
					return fmt.Errorf("%s: no records changed", use)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return newBulkCmd(a, "delete", "Move records to the trash", (*core.Service).BulkSoftDelete)
}

func newRestoreCmd(a *app) *cobra.Command {
	return newBulkCmd(a, "restore", "Restore records from the trash", (*core.Service).BulkRestore)
}

func newPurgeCmd(a *app) *cobra.Command {
	return newBulkCmd(a, "purge", "Permanently delete records", (*core.Service).BulkPermanentDelete)
}
