package main

import (
	"connectcore/internal/core"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func parseView(name string) (core.View, error) {
	v := core.ParseView(name)
	if v == "" {
		names := make([]string, 0, len(core.Views()))
		for _, known := range core.Views() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("unknown view %q (expected one of %s)", name, strings.Join(names, ", "))
	}
	return v, nil
}

type listOptions struct {
	search     string
	statuses   []string
	owners     []string
	intents    []string
	needs      []string
	sortKey    string
	descending bool
}

func (o listOptions) request(v core.View) core.QueryRequest {
	req := core.QueryRequest{
		View:   v,
		Search: o.search,
		Filters: core.Filters{
			StatusIDs:      o.statuses,
			OwnerIDs:       o.owners,
			IntentLevelIDs: o.intents,
			NeedTypeIDs:    o.needs,
		},
		Sort: core.DefaultSort(v),
	}
	if o.sortKey != "" {
		req.Sort = &core.SortConfig{Key: o.sortKey, Direction: core.Ascending}
	}
	if o.descending && req.Sort != nil {
		req.Sort = &core.SortConfig{Key: req.Sort.Key, Direction: core.Descending}
	}
	return req
}

func addQueryFlags(cmd *cobra.Command, o *listOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.search, "search", "s", "", "Case-insensitive search")
	f.StringSliceVar(&o.statuses, "status", nil, "Filter connects by status id")
	f.StringSliceVar(&o.owners, "owner", nil, "Filter connects or leads by owner id")
	f.StringSliceVar(&o.intents, "intent", nil, "Filter leads by intent level id")
	f.StringSliceVar(&o.needs, "need", nil, "Filter leads by need type id")
	f.StringVar(&o.sortKey, "sort", "", "Sort key, e.g. name, updatedAt, owner.name, connects")
	f.BoolVar(&o.descending, "desc", false, "Sort descending")
}

func newListCmd(a *app) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list <view>",
		Short: "List the records of a view",
		Long: `List the records of a view after search, filters and sort.

Views: connects, leads, startups, corporates, stakeholders, admin, success, trash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseView(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(_ context.Context, s *session) error {
				idx := s.ws.Index()
				res := core.Query(idx, opts.request(v))
				return a.renderItems(idx, v, res)
			})
		},
	}
	addQueryFlags(cmd, &opts)
	return cmd
}

func newTrashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trash",
		Short: "List soft-deleted records, most recently deleted first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(_ context.Context, s *session) error {
				idx := s.ws.Index()
				return a.renderItems(idx, core.ViewTrash, core.Query(idx, core.QueryRequest{View: core.ViewTrash}))
			})
		},
	}
}

type itemRow struct {
	Kind   core.Kind `json:"kind"`
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Detail string    `json:"detail,omitempty"`
}

func describe(idx *core.Index, v core.View, it core.Item) itemRow {
	row := itemRow{Kind: it.Kind, ID: it.ID(), Name: it.Name()}
	if v == core.ViewTrash {
		if t := it.Trashable(); t != nil && t.DeletedAt != nil {
			row.Detail = "deleted " + t.DeletedAt.Format(time.RFC3339)
		}
		return row
	}
	switch it.Kind {
	case core.KindConnect:
		row.Detail = fmt.Sprintf("%s | %s x %s", idx.StatusName(it.Connect.StatusID),
			idx.OrganizationName(it.Connect.StartupID), idx.OrganizationName(it.Connect.CorporateID))
	case core.KindLead:
		row.Detail = fmt.Sprintf("%s | %s", idx.StakeholderName(it.Lead.OwnerID),
			strconv.FormatFloat(it.Lead.RevenuePotential, 'f', -1, 64))
	case core.KindOrganization:
		row.Detail = fmt.Sprintf("%s | %d connects", it.Organization.Type, idx.OrganizationRefs[it.Organization.ID])
	case core.KindStakeholder:
		row.Detail = fmt.Sprintf("%s | %s", it.Stakeholder.Email, it.Stakeholder.Affiliation)
	case core.KindSuccessStory:
		row.Detail = idx.Connects[it.SuccessStory.ConnectID].Title
	}
	return row
}

func (a *app) renderItems(idx *core.Index, v core.View, res core.QueryResult) error {
	rows := make([]itemRow, 0, len(res.Items))
	for _, it := range res.Items {
		rows = append(rows, describe(idx, v, it))
	}
	if a.jsonOutput {
		return a.printJSON(struct {
			View  core.View `json:"view"`
			Total int       `json:"total"`
			Items []itemRow `json:"items"`
		}{v, res.Total, rows})
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tNAME\tDETAIL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, r.ID, r.Name, r.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printf("%d of %d shown\n", len(rows), res.Total)
	return nil
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(_ context.Context, s *session) error {
				st := s.ws.Stats()
				if a.jsonOutput {
					return a.printJSON(st)
				}
				a.printf("Active connects:     %d\n", st.TotalActiveConnects)
				a.printf("Success rate:        %.1f%%\n", st.SuccessRate)
				a.printf("Avg deal cycle:      %d days\n", st.AverageDealCycleDays)
				a.printf("Activities:          %d\n", st.TotalActivities)
				a.printf("Active leads:        %d\n", st.TotalActiveLeads)
				a.printf("Lead revenue:        %s\n", strconv.FormatFloat(st.TotalLeadsPotentialRevenue, 'f', -1, 64))
				for _, p := range st.PipelineDistribution {
					a.printf("  %-18s %d\n", p.Status.Name, p.Count)
				}
				return nil
			})
		},
	}
}
