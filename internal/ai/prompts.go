// Package ai builds the analyst prompts for connect summaries and industry
// insights and sends them to Gemini.
package ai

import (
	"connectcore/internal/core"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingSummaryData is returned when a connect's parties cannot be resolved.
var ErrMissingSummaryData = errors.New("Missing data to generate summary.")

// ErrOrganizationNotFound is returned for insights on an unknown organization.
var ErrOrganizationNotFound = errors.New("Organization not found.")

// activityDateLayout renders activity dates in the short month/day/year form.
const activityDateLayout = "1/2/2006"

// SummaryInput carries the resolved records describing one connect.
type SummaryInput struct {
	Connect    core.Connect
	Startup    core.Organization
	Corporate  core.Organization
	Owner      core.Stakeholder
	Status     core.Status
	Activities []core.Activity
	// Names resolves participant ids to display names.
	Names map[string]string
}

// SummaryInputFor resolves connectID against idx.
func SummaryInputFor(idx *core.Index, connectID string) (SummaryInput, error) {
	c, ok := idx.Connects[connectID]
	if !ok {
		return SummaryInput{}, ErrMissingSummaryData
	}
	startup, okS := idx.Organizations[c.StartupID]
	corporate, okC := idx.Organizations[c.CorporateID]
	owner, okO := idx.Stakeholders[c.OwnerID]
	status, okSt := idx.Statuses[c.StatusID]
	if !okS || !okC || !okO || !okSt {
		return SummaryInput{}, ErrMissingSummaryData
	}
	names := make(map[string]string, len(idx.Stakeholders))
	for id, s := range idx.Stakeholders {
		names[id] = s.Name
	}
	return SummaryInput{
		Connect:    c,
		Startup:    startup,
		Corporate:  corporate,
		Owner:      owner,
		Status:     status,
		Activities: idx.ActivitiesByConnect[connectID],
		Names:      names,
	}, nil
}

// ConnectSummaryPrompt asks for a deal summary and next steps. Activities are
// listed oldest first.
func ConnectSummaryPrompt(in SummaryInput) string {
	acts := append([]core.Activity(nil), in.Activities...)
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Date.Before(acts[j].Date) })
	var log []string
	for _, a := range acts {
		var who []string
		for _, id := range a.Participants {
			if name := in.Names[id]; name != "" {
				who = append(who, name)
			}
		}
		notes := a.Notes
		if notes == "" {
			notes = "N/A"
		}
		log = append(log, fmt.Sprintf(`- %s: %s - "%s" with %s. Notes: %s`,
			a.Date.Format(activityDateLayout), a.Type, a.Title, strings.Join(who, ", "), notes))
	}
	history := strings.Join(log, "\n")
	if history == "" {
		history = "No activities logged yet."
	}

	var b strings.Builder
	b.WriteString("You are a venture capital analyst. Analyze the following deal timeline and provide a concise summary and suggest potential next steps.\n\n")
	b.WriteString("Deal Information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", in.Connect.Title)
	fmt.Fprintf(&b, "- Current Status: %s\n", in.Status.Name)
	fmt.Fprintf(&b, "- Record Owner: %s\n", in.Owner.Name)
	fmt.Fprintf(&b, "- Startup: %s\n", in.Startup.Name)
	fmt.Fprintf(&b, "- Corporate Partner: %s\n\n", in.Corporate.Name)
	b.WriteString("Activity History (Chronological):\n")
	b.WriteString(history)
	b.WriteString("\n\nBased on the full deal context and its history:\n")
	b.WriteString("1.  **Summary:** Provide a brief, professional summary of the deal's progression and current state.\n")
	b.WriteString("2.  **Next Steps:** Suggest 2-3 actionable next steps to move this deal forward, considering its most recent activity and overall status.\n\n")
	b.WriteString(`Format the output in Markdown. Use headings for "Summary" and "Next Steps".`)
	return b.String()
}

// IndustryInsightsPrompt asks for a market overview and competitor list for
// the named organization.
func IndustryInsightsPrompt(name string) string {
	var b strings.Builder
	b.WriteString("You are a business analyst for a venture capital firm.\n")
	fmt.Fprintf(&b, "Provide a detailed market analysis and identify the key competitors for the company named \"%s\".\n\n", name)
	b.WriteString("Your analysis should cover:\n")
	fmt.Fprintf(&b, "1.  **Market Overview:** A brief summary of the industry and market segment %s operates in.\n", name)
	b.WriteString("2.  **Key Competitors:** A list of 3-5 primary competitors. For each competitor, provide a short (1-2 sentence) description of what they do and why they are a competitor.\n")
	fmt.Fprintf(&b, "3.  **Competitive Advantage:** Briefly suggest what might be %s's key differentiator or competitive advantage based on public information.\n\n", name)
	b.WriteString("Format the entire output in Markdown.")
	return b.String()
}
