package core

import (
	"fmt"
	"slices"
)

// UsageRole names how a stakeholder is referenced by another record.
type UsageRole string

// Stakeholder usage roles.
const (
	RoleConnectOwner        UsageRole = "Connect Owner"
	RoleStartupContact      UsageRole = "Startup Contact (Deal)"
	RoleCorporateContact    UsageRole = "Corporate Contact (Deal)"
	RoleOrganizationOwner   UsageRole = "Organization Owner"
	RoleOrganizationContact UsageRole = "Organization Contact"
	RoleActivityParticipant UsageRole = "Activity Participant"
)

// UsageDetail is one (record, role) reference to a stakeholder.
type UsageDetail struct {
	RecordName string    `json:"recordName"`
	RecordType string    `json:"recordType"`
	Role       UsageRole `json:"role"`
}

// BlockingConnect is an active connect that still names an organization.
type BlockingConnect struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// GuardReport is the outcome of a deletion guard. A blocked report lists the
// references that must be removed first.
type GuardReport struct {
	Kind         Kind              `json:"kind"`
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Blocked      bool              `json:"blocked"`
	Count        int               `json:"count"`
	Stakeholders []UsageDetail     `json:"stakeholders,omitempty"`
	Connects     []BlockingConnect `json:"connects,omitempty"`
}

// Message renders the report for display.
func (r GuardReport) Message() string {
	if !r.Blocked {
		return fmt.Sprintf("%s %q can be deleted", r.Kind.Label(), r.Name)
	}
	switch r.Kind {
	case KindStakeholder:
		return fmt.Sprintf("Cannot delete %q: referenced by %d record(s).", r.Name, r.Count)
	case KindOrganization:
		return fmt.Sprintf("Cannot delete %q: linked to %d active connect(s).", r.Name, r.Count)
	case KindStatus:
		return "Cannot delete a status that is currently in use."
	case KindIntentLevel:
		return "Cannot delete an intent level that is currently in use."
	case KindNeedType:
		return "Cannot delete a need type that is currently in use."
	}
	return fmt.Sprintf("Cannot delete %s %q: still in use.", r.Kind.Label(), r.Name)
}

// StakeholderUsage lists every active connect and organization role held by
// the stakeholder, plus each activity it authored or joined (reported once).
func StakeholderUsage(idx *Index, id string) []UsageDetail {
	ds := idx.Dataset()
	var details []UsageDetail
	for _, c := range ds.Connects {
		if c.Deleted() {
			continue
		}
		add := func(role UsageRole) {
			details = append(details, UsageDetail{RecordName: c.Title, RecordType: KindConnect.Label(), Role: role})
		}
		if c.OwnerID == id {
			add(RoleConnectOwner)
		}
		if slices.Contains(c.StartupContactIDs, id) {
			add(RoleStartupContact)
		}
		if slices.Contains(c.CorporateContactIDs, id) {
			add(RoleCorporateContact)
		}
	}
	for _, o := range ds.Organizations {
		if o.Deleted() {
			continue
		}
		add := func(role UsageRole) {
			details = append(details, UsageDetail{RecordName: o.Name, RecordType: KindOrganization.Label(), Role: role})
		}
		if o.OwnerID != "" && o.OwnerID == id {
			add(RoleOrganizationOwner)
		}
		if slices.Contains(o.ContactIDs, id) {
			add(RoleOrganizationContact)
		}
	}
	for _, a := range ds.Activities {
		if a.AuthorID == id || slices.Contains(a.Participants, id) {
			details = append(details, UsageDetail{RecordName: a.Title, RecordType: KindActivity.Label(), Role: RoleActivityParticipant})
		}
	}
	return details
}

// OrganizationUsage lists the active connects naming the organization as
// startup or corporate.
func OrganizationUsage(idx *Index, id string) []BlockingConnect {
	var out []BlockingConnect
	for _, c := range idx.Dataset().Connects {
		if c.Deleted() || (c.StartupID != id && c.CorporateID != id) {
			continue
		}
		out = append(out, BlockingConnect{ID: c.ID, Title: c.Title, Status: idx.StatusName(c.StatusID)})
	}
	return out
}

// StatusInUse reports whether an active connect carries the status.
func StatusInUse(idx *Index, id string) bool { return idx.StatusRefs[id] > 0 }

// IntentLevelInUse reports whether an active lead carries the intent level.
func IntentLevelInUse(idx *Index, id string) bool { return idx.IntentLevelRefs[id] > 0 }

// NeedTypeInUse reports whether an active lead carries the need type.
func NeedTypeInUse(idx *Index, id string) bool { return idx.NeedTypeRefs[id] > 0 }

// CheckDeletion evaluates the guard for removing the record. Kinds without a
// guard (connects, leads, activities, stories, non-revenue tags) never block.
func CheckDeletion(idx *Index, kind Kind, id string) GuardReport {
	report := GuardReport{Kind: kind, ID: id}
	switch kind {
	case KindStakeholder:
		report.Name = idx.StakeholderName(id)
		report.Stakeholders = StakeholderUsage(idx, id)
		report.Count = len(report.Stakeholders)
	case KindOrganization:
		report.Name = idx.OrganizationName(id)
		report.Connects = OrganizationUsage(idx, id)
		report.Count = len(report.Connects)
	case KindStatus:
		report.Name = idx.StatusName(id)
		report.Count = idx.StatusRefs[id]
	case KindIntentLevel:
		report.Name = idx.IntentLevels[id].Name
		report.Count = idx.IntentLevelRefs[id]
	case KindNeedType:
		report.Name = idx.NeedTypes[id].Name
		report.Count = idx.NeedTypeRefs[id]
	}
	report.Blocked = report.Count > 0
	return report
}
