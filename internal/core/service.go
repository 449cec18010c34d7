package core

import (
	"connectcore/internal/infra/persistence/memory"
	"connectcore/pkg/domain"
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service is the mutation pipeline. Every write goes through a store
// transaction so cascades and side effects commit atomically.
type Service struct {
	store    PersistentStore
	validate *validator.Validate
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:    store,
		validate: newValidator(),
		clock:    cfg.clock,
		logger:   cfg.logger,
		audit:    cfg.audit,
		metrics:  cfg.metrics,
		tracer:   cfg.tracer,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. The
// store stamps documents with the service clock.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	store := memory.NewStore(engine, memory.WithClock(cfg.clock.Now))
	return NewService(store, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRecord runs the struct validation tags and reports the first
// failing field as a ValidationError.
func (s *Service) validateRecord(kind Kind, rec any) error {
	err := s.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	msg := ""
	if fe.Tag() != "required" {
		msg = kind.Label() + ": invalid " + fe.Field()
	}
	return ValidationError{Kind: kind, Field: fe.Field(), Message: msg}
}

// run wraps an operation with tracing, metrics, audit and logging. fn returns
// the id of the affected record.
func (s *Service) run(ctx context.Context, op string, kind Kind, id string, fn func(ctx context.Context) (string, error)) (err error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	entityID, err := fn(ctx)
	if entityID == "" {
		entityID = id
	}
	err = ClassifyStoreError(op, err)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation:  op,
		Kind:       kind,
		EntityID:   entityID,
		Status:     AuditStatusSuccess,
		Actor:      ActorFromContext(ctx),
		Duration:   duration,
		RecordedAt: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		var guard GuardError
		var rules RuleViolationError
		if errors.As(err, &guard) || errors.As(err, &rules) {
			entry.Status = AuditStatusBlocked
			s.logger.Warn("operation blocked", "operation", op, "kind", kind, "id", entityID, "error", err)
		} else {
			s.logger.Error("operation failed", "operation", op, "kind", kind, "id", entityID, "error", err)
		}
	} else {
		s.logger.Debug("operation complete", "operation", op, "kind", kind, "id", entityID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return err
}

// transact runs fn in a store transaction and logs non-blocking violations.
func (s *Service) transact(ctx context.Context, fn func(tx Transaction) error) error {
	res, err := s.store.RunInTransaction(ctx, fn)
	for _, v := range res.Violations {
		if v.Severity != SeverityBlock {
			s.logger.Warn("rule violation", "rule", v.Rule, "collection", v.Collection, "id", v.EntityID, "message", v.Message)
		}
	}
	return err
}

// datasetFromView decodes every collection visible to a transaction.
func datasetFromView(view domain.RuleView) Dataset {
	var ds Dataset
	for _, c := range domain.Collections() {
		ds = ds.withCollection(c, view.List(c))
	}
	return ds
}

// Snapshot returns the index over the committed store state.
func (s *Service) Snapshot(ctx context.Context) (*Index, error) {
	var idx *Index
	err := s.store.View(ctx, func(v TransactionView) error {
		idx = BuildIndex(datasetFromView(v))
		return nil
	})
	return idx, err
}

func findRecord[T any](view domain.RuleView, kind Kind, id string) (T, error) {
	var zero T
	doc, ok := view.Find(kind.Collection(), id)
	if !ok {
		return zero, ErrNotFound{Kind: kind, ID: id}
	}
	return domain.Decode[T](doc)
}

// updatePatch encodes rec as a merge patch, leaving out fields owned by the
// store or by dedicated operations.
func updatePatch(rec any, omit ...string) (Patch, error) {
	fields, err := domain.Encode(rec)
	if err != nil {
		return nil, err
	}
	for _, key := range append([]string{"id", "createdAt", "updatedAt", "deletedAt"}, omit...) {
		delete(fields, key)
	}
	return Patch(fields), nil
}

// saveRecord creates rec when id is empty and merges it into the stored
// record otherwise, returning the committed record.
func saveRecord[T any](ctx context.Context, s *Service, kind Kind, id string, rec T, before func(tx Transaction) error) (T, error) {
	var saved T
	op := "create_" + string(kind)
	if id != "" {
		op = "update_" + string(kind)
	}
	err := s.run(ctx, op, kind, id, func(ctx context.Context) (string, error) {
		if err := s.validateRecord(kind, rec); err != nil {
			return id, err
		}
		err := s.transact(ctx, func(tx Transaction) error {
			if before != nil {
				if err := before(tx); err != nil {
					return err
				}
			}
			c := kind.Collection()
			if id == "" {
				newID, err := tx.Add(c, rec)
				if err != nil {
					return err
				}
				id = newID
			} else {
				if _, ok := tx.Snapshot().Find(c, id); !ok {
					return ErrNotFound{Kind: kind, ID: id}
				}
				patch, err := updatePatch(rec)
				if err != nil {
					return err
				}
				if err := tx.Update(c, id, patch); err != nil {
					return err
				}
			}
			var err error
			saved, err = findRecord[T](tx.Snapshot(), kind, id)
			return err
		})
		return id, err
	})
	return saved, err
}

// SaveStakeholder creates or updates a stakeholder.
func (s *Service) SaveStakeholder(ctx context.Context, st Stakeholder) (Stakeholder, error) {
	st.Email = strings.TrimSpace(st.Email)
	return saveRecord(ctx, s, KindStakeholder, st.ID, st, nil)
}

// SaveOrganization creates or updates an organization. Contact ids are
// deduplicated; a type change drops contacts the caller did not replace.
func (s *Service) SaveOrganization(ctx context.Context, org Organization) (Organization, error) {
	org.ContactIDs = dedupe(org.ContactIDs)
	if org.ContactIDs == nil {
		org.ContactIDs = []string{}
	}
	if org.ID != "" {
		var prev Organization
		err := s.store.View(ctx, func(v TransactionView) error {
			var err error
			prev, err = findRecord[Organization](v, KindOrganization, org.ID)
			return err
		})
		if err == nil && prev.Type != org.Type && slices.Equal(prev.ContactIDs, org.ContactIDs) {
			org.ContactIDs = []string{}
		}
	}
	return saveRecord(ctx, s, KindOrganization, org.ID, org, nil)
}

// SaveConnect creates or updates a connect. New connects need at least one
// contact on each side.
func (s *Service) SaveConnect(ctx context.Context, c Connect) (Connect, error) {
	if c.ID == "" {
		if len(c.StartupContactIDs) == 0 {
			return Connect{}, s.run(ctx, "create_connect", KindConnect, "", func(context.Context) (string, error) {
				return "", ValidationError{Kind: KindConnect, Field: "startupContactIds", Message: "Select at least one startup contact."}
			})
		}
		if len(c.CorporateContactIDs) == 0 {
			return Connect{}, s.run(ctx, "create_connect", KindConnect, "", func(context.Context) (string, error) {
				return "", ValidationError{Kind: KindConnect, Field: "corporateContactIds", Message: "Select at least one corporate contact."}
			})
		}
	}
	if c.Date.IsZero() {
		c.Date = s.clock.Now()
	}
	c.StartupContactIDs = nonNil(dedupe(c.StartupContactIDs))
	c.CorporateContactIDs = nonNil(dedupe(c.CorporateContactIDs))
	if c.ID != "" {
		// Contact lists are scoped to their organization, so stale selections
		// go when the organization changes.
		var prev Connect
		err := s.store.View(ctx, func(v TransactionView) error {
			var err error
			prev, err = findRecord[Connect](v, KindConnect, c.ID)
			return err
		})
		if err == nil {
			if prev.StartupID != c.StartupID && slices.Equal(prev.StartupContactIDs, c.StartupContactIDs) {
				c.StartupContactIDs = []string{}
			}
			if prev.CorporateID != c.CorporateID && slices.Equal(prev.CorporateContactIDs, c.CorporateContactIDs) {
				c.CorporateContactIDs = []string{}
			}
		}
	}
	return saveRecord(ctx, s, KindConnect, c.ID, c, nil)
}

// ApplyConnectChange returns next with the contact list of any side whose
// organization changed since prev cleared.
func ApplyConnectChange(prev, next Connect) Connect {
	if prev.StartupID != next.StartupID {
		next.StartupContactIDs = []string{}
	}
	if prev.CorporateID != next.CorporateID {
		next.CorporateContactIDs = []string{}
	}
	return next
}

// ApplyOrganizationChange returns next with its contacts cleared when the
// organization type changed since prev.
func ApplyOrganizationChange(prev, next Organization) Organization {
	if prev.Type != next.Type {
		next.ContactIDs = []string{}
	}
	return next
}

// QuickStatusUpdate moves a connect to another status.
func (s *Service) QuickStatusUpdate(ctx context.Context, connectID, statusID string) error {
	return s.run(ctx, "quick_status_update", KindConnect, connectID, func(ctx context.Context) (string, error) {
		return connectID, s.transact(ctx, func(tx Transaction) error {
			if _, ok := tx.Snapshot().Find(domain.CollectionStatuses, statusID); !ok {
				return ErrNotFound{Kind: KindStatus, ID: statusID}
			}
			if _, ok := tx.Snapshot().Find(domain.CollectionConnects, connectID); !ok {
				return ErrNotFound{Kind: KindConnect, ID: connectID}
			}
			return tx.Update(domain.CollectionConnects, connectID, Patch{"statusId": statusID})
		})
	})
}

// SaveLead creates or updates a lead.
func (s *Service) SaveLead(ctx context.Context, l Lead) (Lead, error) {
	l.NonRevenueTagIDs = nonNil(dedupe(l.NonRevenueTagIDs))
	if l.OrganizationType == "" {
		l.OrganizationType = domain.OrgTypeStartup
	}
	return saveRecord(ctx, s, KindLead, l.ID, l, nil)
}

// SaveStatus creates or updates a status.
func (s *Service) SaveStatus(ctx context.Context, st Status) (Status, error) {
	return saveRecord(ctx, s, KindStatus, st.ID, st, nil)
}

// SaveIntentLevel creates or updates an intent level.
func (s *Service) SaveIntentLevel(ctx context.Context, lvl IntentLevel) (IntentLevel, error) {
	return saveRecord(ctx, s, KindIntentLevel, lvl.ID, lvl, nil)
}

// SaveNeedType creates or updates a need type.
func (s *Service) SaveNeedType(ctx context.Context, nt NeedType) (NeedType, error) {
	return saveRecord(ctx, s, KindNeedType, nt.ID, nt, nil)
}

// SaveNonRevenueTag creates or updates a non-revenue tag.
func (s *Service) SaveNonRevenueTag(ctx context.Context, tag NonRevenueTag) (NonRevenueTag, error) {
	return saveRecord(ctx, s, KindNonRevenueTag, tag.ID, tag, nil)
}

// SaveSuccessStory creates or updates the story of a connect. A connect has
// at most one story, so creating a second one updates the existing record.
func (s *Service) SaveSuccessStory(ctx context.Context, story SuccessStory) (SuccessStory, error) {
	story.KeyOutcomes = nonNil(story.KeyOutcomes)
	if story.ID == "" && story.ConnectID != "" {
		err := s.store.View(ctx, func(v TransactionView) error {
			if existing := v.Where(domain.CollectionSuccessStories, "connectId", story.ConnectID); len(existing) > 0 {
				story.ID = existing[0].ID
			}
			return nil
		})
		if err != nil {
			return SuccessStory{}, err
		}
	}
	return saveRecord(ctx, s, KindSuccessStory, story.ID, story, func(tx Transaction) error {
		if _, ok := tx.Snapshot().Find(domain.CollectionConnects, story.ConnectID); !ok {
			return ErrNotFound{Kind: KindConnect, ID: story.ConnectID}
		}
		return nil
	})
}

// SaveActivity creates or updates an activity and touches its parent
// connect or lead. The author is the acting stakeholder on create (or
// "system") and is never changed on edit.
func (s *Service) SaveActivity(ctx context.Context, a Activity) (Activity, error) {
	a.Participants = nonNil(dedupe(a.Participants))
	if a.Date.IsZero() {
		a.Date = s.clock.Now()
	}
	op := "create_activity"
	if a.ID != "" {
		op = "update_activity"
	}
	var saved Activity
	err := s.run(ctx, op, KindActivity, a.ID, func(ctx context.Context) (string, error) {
		if err := s.validateRecord(KindActivity, a); err != nil {
			return a.ID, err
		}
		id := a.ID
		err := s.transact(ctx, func(tx Transaction) error {
			parent := a.ParentCollection()
			if parent == "" || (a.ConnectID != "" && a.LeadID != "") {
				return ValidationError{Kind: KindActivity, Field: "connectId", Message: "Activity must belong to exactly one connect or lead."}
			}
			if _, ok := tx.Snapshot().Find(parent, a.ParentID()); !ok {
				return ErrNotFound{Kind: parent.Kind(), ID: a.ParentID()}
			}
			if id == "" {
				a.AuthorID = ActorFromContext(ctx)
				if a.AuthorID == "" {
					a.AuthorID = "system"
				}
				newID, err := tx.Add(domain.CollectionActivities, a)
				if err != nil {
					return err
				}
				id = newID
			} else {
				prev, err := findRecord[Activity](tx.Snapshot(), KindActivity, id)
				if err != nil {
					return err
				}
				patch, err := updatePatch(a, "authorId")
				if err != nil {
					return err
				}
				// Clear the parent link the activity no longer uses.
				if a.ConnectID == "" {
					patch["connectId"] = nil
				}
				if a.LeadID == "" {
					patch["leadId"] = nil
				}
				if err := tx.Update(domain.CollectionActivities, id, patch); err != nil {
					return err
				}
				if prev.ParentID() != a.ParentID() {
					touchParent(tx, prev)
				}
			}
			if err := tx.Update(parent, a.ParentID(), Patch{}); err != nil {
				return err
			}
			var err error
			saved, err = findRecord[Activity](tx.Snapshot(), KindActivity, id)
			return err
		})
		return id, err
	})
	return saved, err
}

// touchParent refreshes updatedAt on the activity's parent if it still exists.
func touchParent(tx Transaction, a Activity) {
	parent := a.ParentCollection()
	if parent == "" {
		return
	}
	if _, ok := tx.Snapshot().Find(parent, a.ParentID()); ok {
		_ = tx.Update(parent, a.ParentID(), Patch{})
	}
}

func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
