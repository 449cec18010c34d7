// Package domain defines the persistent CRM records, the document wire form
// used by backing stores, and the rule evaluation primitives used by
// connectcore.
package domain

import (
	"strings"
	"time"
)

// Collection names a document collection in the backing store.
type Collection string

// Collections held by the workspace.
const (
	CollectionConnects       Collection = "connects"
	CollectionLeads          Collection = "leads"
	CollectionOrganizations  Collection = "organizations"
	CollectionStakeholders   Collection = "stakeholders"
	CollectionStatuses       Collection = "statuses"
	CollectionActivities     Collection = "activities"
	CollectionSuccessStories Collection = "successStories"
	CollectionIntentLevels   Collection = "intentLevels"
	CollectionNeedTypes      Collection = "needTypes"
	CollectionNonRevenueTags Collection = "nonRevenueTags"
	CollectionUserSettings   Collection = "userSettings"
)

// Collections lists every collection in load order.
func Collections() []Collection {
	return []Collection{
		CollectionConnects,
		CollectionLeads,
		CollectionOrganizations,
		CollectionStakeholders,
		CollectionStatuses,
		CollectionActivities,
		CollectionSuccessStories,
		CollectionIntentLevels,
		CollectionNeedTypes,
		CollectionNonRevenueTags,
		CollectionUserSettings,
	}
}

// Kind is the explicit discriminant carried by heterogeneous records.
type Kind string

// Record kinds.
const (
	KindConnect       Kind = "connect"
	KindLead          Kind = "lead"
	KindOrganization  Kind = "organization"
	KindStakeholder   Kind = "stakeholder"
	KindActivity      Kind = "activity"
	KindSuccessStory  Kind = "successStory"
	KindStatus        Kind = "status"
	KindIntentLevel   Kind = "intentLevel"
	KindNeedType      Kind = "needType"
	KindNonRevenueTag Kind = "nonRevenueTag"
	KindUserSettings  Kind = "userSettings"
)

var kindCollections = map[Kind]Collection{
	KindConnect:       CollectionConnects,
	KindLead:          CollectionLeads,
	KindOrganization:  CollectionOrganizations,
	KindStakeholder:   CollectionStakeholders,
	KindActivity:      CollectionActivities,
	KindSuccessStory:  CollectionSuccessStories,
	KindStatus:        CollectionStatuses,
	KindIntentLevel:   CollectionIntentLevels,
	KindNeedType:      CollectionNeedTypes,
	KindNonRevenueTag: CollectionNonRevenueTags,
	KindUserSettings:  CollectionUserSettings,
}

// Collection returns the collection storing records of this kind.
func (k Kind) Collection() Collection {
	return kindCollections[k]
}

// Label returns the human readable record type used in reports.
func (k Kind) Label() string {
	switch k {
	case KindConnect:
		return "Connect"
	case KindLead:
		return "Lead"
	case KindOrganization:
		return "Organization"
	case KindStakeholder:
		return "Stakeholder"
	case KindActivity:
		return "Activity"
	case KindSuccessStory:
		return "Success Story"
	case KindStatus:
		return "Status"
	case KindIntentLevel:
		return "Intent Level"
	case KindNeedType:
		return "Need Type"
	case KindNonRevenueTag:
		return "Non-Revenue Tag"
	default:
		return "Item"
	}
}

// Kind resolves the record kind stored in the collection.
func (c Collection) Kind() Kind {
	for k, col := range kindCollections {
		if col == c {
			return k
		}
	}
	return ""
}

// SoftDeletable reports whether records in the collection move to the trash
// before permanent removal.
func (c Collection) SoftDeletable() bool {
	switch c {
	case CollectionConnects, CollectionLeads, CollectionOrganizations, CollectionStakeholders:
		return true
	}
	return false
}

// Timestamped reports whether records carry createdAt/updatedAt stamps.
func (c Collection) Timestamped() bool {
	switch c {
	case CollectionStatuses, CollectionIntentLevels, CollectionNeedTypes, CollectionNonRevenueTags, CollectionUserSettings:
		return false
	}
	return true
}

// Affiliation classifies a stakeholder.
type Affiliation string

// Stakeholder affiliations.
const (
	AffiliationInternal  Affiliation = "internal"
	AffiliationStartup   Affiliation = "startup"
	AffiliationCorporate Affiliation = "corporate"
)

// ParseAffiliation normalises a free-text affiliation. Unknown values yield "".
func ParseAffiliation(v string) Affiliation {
	switch a := Affiliation(strings.ToLower(strings.TrimSpace(v))); a {
	case AffiliationInternal, AffiliationStartup, AffiliationCorporate:
		return a
	}
	return ""
}

// OrgType classifies an organization or a lead's counterpart.
type OrgType string

// Organization types.
const (
	OrgTypeStartup   OrgType = "startup"
	OrgTypeCorporate OrgType = "corporate"
)

// ParseOrgType normalises a free-text organization type. Unknown values yield "".
func ParseOrgType(v string) OrgType {
	switch t := OrgType(strings.ToLower(strings.TrimSpace(v))); t {
	case OrgTypeStartup, OrgTypeCorporate:
		return t
	}
	return ""
}

// ActivityType enumerates logged interaction types.
type ActivityType string

// Activity types in display order.
const (
	ActivityMeeting   ActivityType = "Meeting"
	ActivityCall      ActivityType = "Call"
	ActivityEmail     ActivityType = "Email"
	ActivityNote      ActivityType = "Note"
	ActivityMilestone ActivityType = "Milestone"
)

// ActivityTypes lists every activity type in display order.
func ActivityTypes() []ActivityType {
	return []ActivityType{ActivityMeeting, ActivityCall, ActivityEmail, ActivityNote, ActivityMilestone}
}

// Base contains the fields shared by timestamped records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Trashable carries the soft-delete marker.
type Trashable struct {
	DeletedAt *time.Time `json:"deletedAt"`
}

// Deleted reports whether the record sits in the trash.
func (t Trashable) Deleted() bool { return t.DeletedAt != nil }

// Stakeholder is a person, internal staff or external contact.
type Stakeholder struct {
	Base
	Trashable
	Name        string      `json:"name" validate:"required"`
	Role        string      `json:"role"`
	Email       string      `json:"email" validate:"required"`
	Phone       string      `json:"phone"`
	Affiliation Affiliation `json:"affiliation" validate:"required,oneof=internal startup corporate"`
}

// Organization is a startup or corporate company.
type Organization struct {
	Base
	Trashable
	Name       string   `json:"name" validate:"required"`
	Type       OrgType  `json:"type" validate:"required,oneof=startup corporate"`
	OwnerID    string   `json:"ownerId,omitempty"`
	ContactIDs []string `json:"contactIds"`
}

// Status is a user-defined connect workflow label.
type Status struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}

// IntentLevel grades a lead's intent.
type IntentLevel struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}

// NeedType classifies what a lead needs.
type NeedType struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

// NonRevenueTag labels non-monetary value of a lead.
type NonRevenueTag struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}

// Connect is a tracked partnership deal between a startup and a corporate.
type Connect struct {
	Base
	Trashable
	Title               string    `json:"title" validate:"required"`
	StartupID           string    `json:"startupId" validate:"required"`
	CorporateID         string    `json:"corporateId" validate:"required"`
	OwnerID             string    `json:"ownerId" validate:"required"`
	StatusID            string    `json:"statusId" validate:"required"`
	Date                time.Time `json:"date"`
	StartupContactIDs   []string  `json:"startupContactIds"`
	CorporateContactIDs []string  `json:"corporateContactIds"`
}

// Lead is a pre-deal opportunity.
type Lead struct {
	Base
	Trashable
	Name             string   `json:"name" validate:"required"`
	OrganizationType OrgType  `json:"organizationType" validate:"required,oneof=startup corporate"`
	Source           string   `json:"source"`
	IntentLevelID    string   `json:"intentLevelId" validate:"required"`
	NeedTypeID       string   `json:"needTypeId" validate:"required"`
	RevenuePotential float64  `json:"revenuePotential" validate:"gte=0"`
	NonRevenueTagIDs []string `json:"nonRevenueTagIds"`
	OwnerID          string   `json:"ownerId" validate:"required"`
	Comments         string   `json:"comments"`
}

// Activity is a logged interaction attached to one connect or one lead.
type Activity struct {
	Base
	ConnectID    string       `json:"connectId,omitempty"`
	LeadID       string       `json:"leadId,omitempty"`
	Type         ActivityType `json:"type" validate:"required,oneof=Meeting Call Email Note Milestone"`
	Date         time.Time    `json:"date"`
	Title        string       `json:"title" validate:"required"`
	Notes        string       `json:"notes"`
	Participants []string     `json:"participants"`
	AuthorID     string       `json:"authorId"`
}

// ParentID returns the connect or lead id the activity belongs to.
func (a Activity) ParentID() string {
	if a.ConnectID != "" {
		return a.ConnectID
	}
	return a.LeadID
}

// ParentCollection returns the collection of the activity's parent, or "".
func (a Activity) ParentCollection() Collection {
	switch {
	case a.ConnectID != "":
		return CollectionConnects
	case a.LeadID != "":
		return CollectionLeads
	}
	return ""
}

// SuccessStory is the narrative derived from one connect.
type SuccessStory struct {
	Base
	ConnectID   string   `json:"connectId" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Story       string   `json:"story"`
	KeyOutcomes []string `json:"keyOutcomes"`
}

// UserSettings holds per-user UI preferences keyed by user id.
type UserSettings struct {
	ID           string               `json:"id"`
	ColumnWidths map[string][]float64 `json:"columnWidths,omitempty"`
}
