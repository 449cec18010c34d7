package core

import (
	"connectcore/pkg/domain"
	"context"
	"fmt"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewTaxonomyInUseRule())
	engine.Register(NewActivityParentRule())
	engine.Register(NewConnectPartiesRule())
	return engine
}

// NewTaxonomyInUseRule blocks hard-deleting a status, intent level or need
// type that an active record still carries.
func NewTaxonomyInUseRule() Rule {
	return taxonomyInUseRule{}
}

type taxonomyInUseRule struct{}

func (taxonomyInUseRule) Name() string { return "taxonomy_in_use" }

func (r taxonomyInUseRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, ch := range changes {
		if ch.Action != ActionDelete {
			continue
		}
		var (
			parent Collection
			field  string
		)
		switch ch.Collection {
		case domain.CollectionStatuses:
			parent, field = domain.CollectionConnects, "statusId"
		case domain.CollectionIntentLevels:
			parent, field = domain.CollectionLeads, "intentLevelId"
		case domain.CollectionNeedTypes:
			parent, field = domain.CollectionLeads, "needTypeId"
		default:
			continue
		}
		active := 0
		for _, doc := range view.Where(parent, field, ch.ID) {
			if rec, err := domain.Decode[Trashable](doc); err == nil && rec.Deleted() {
				continue
			}
			active++
		}
		if active == 0 {
			continue
		}
		kind := ch.Collection.Kind()
		res.Violations = append(res.Violations, domain.Violation{
			Rule:       r.Name(),
			Severity:   SeverityBlock,
			Message:    fmt.Sprintf("%s %s is used by %d active %s", kind.Label(), ch.ID, active, parent),
			Collection: ch.Collection,
			EntityID:   ch.ID,
		})
	}
	return res, nil
}

// NewActivityParentRule blocks activities that are not attached to exactly
// one connect or lead.
func NewActivityParentRule() Rule {
	return activityParentRule{}
}

type activityParentRule struct{}

func (activityParentRule) Name() string { return "activity_parent" }

func (r activityParentRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, ch := range changes {
		if ch.Collection != domain.CollectionActivities || ch.Action == ActionDelete {
			continue
		}
		act, err := domain.Decode[Activity](Document{Collection: ch.Collection, ID: ch.ID, Data: ch.After})
		if err != nil {
			continue
		}
		if (act.ConnectID == "") == (act.LeadID == "") {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       r.Name(),
				Severity:   SeverityBlock,
				Message:    fmt.Sprintf("activity %s must belong to exactly one connect or lead", ch.ID),
				Collection: ch.Collection,
				EntityID:   ch.ID,
			})
		}
	}
	return res, nil
}

// NewConnectPartiesRule warns when a connect names an organization of the
// wrong type on either side of the deal.
func NewConnectPartiesRule() Rule {
	return connectPartiesRule{}
}

type connectPartiesRule struct{}

func (connectPartiesRule) Name() string { return "connect_parties" }

func (r connectPartiesRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, ch := range changes {
		if ch.Collection != domain.CollectionConnects || ch.Action == ActionDelete {
			continue
		}
		c, err := domain.Decode[Connect](Document{Collection: ch.Collection, ID: ch.ID, Data: ch.After})
		if err != nil {
			continue
		}
		sides := []struct {
			id   string
			want domain.OrgType
		}{{c.StartupID, domain.OrgTypeStartup}, {c.CorporateID, domain.OrgTypeCorporate}}
		for _, side := range sides {
			doc, ok := view.Find(domain.CollectionOrganizations, side.id)
			if !ok {
				continue
			}
			org, err := domain.Decode[Organization](doc)
			if err != nil || org.Type == side.want {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       r.Name(),
				Severity:   SeverityWarn,
				Message:    fmt.Sprintf("connect %s names %s organization %s as %s", ch.ID, org.Type, org.Name, side.want),
				Collection: ch.Collection,
				EntityID:   ch.ID,
			})
		}
	}
	return res, nil
}
