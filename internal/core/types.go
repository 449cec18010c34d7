package core

import "connectcore/pkg/domain"

type (
	Kind               = domain.Kind
	Collection         = domain.Collection
	Document           = domain.Document
	Patch              = domain.Patch
	Severity           = domain.Severity
	Base               = domain.Base
	Trashable          = domain.Trashable
	Stakeholder        = domain.Stakeholder
	Organization       = domain.Organization
	Status             = domain.Status
	IntentLevel        = domain.IntentLevel
	NeedType           = domain.NeedType
	NonRevenueTag      = domain.NonRevenueTag
	Connect            = domain.Connect
	Lead               = domain.Lead
	Activity           = domain.Activity
	SuccessStory       = domain.SuccessStory
	UserSettings       = domain.UserSettings
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	KindConnect       = domain.KindConnect
	KindLead          = domain.KindLead
	KindOrganization  = domain.KindOrganization
	KindStakeholder   = domain.KindStakeholder
	KindActivity      = domain.KindActivity
	KindSuccessStory  = domain.KindSuccessStory
	KindStatus        = domain.KindStatus
	KindIntentLevel   = domain.KindIntentLevel
	KindNeedType      = domain.KindNeedType
	KindNonRevenueTag = domain.KindNonRevenueTag
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
