package core

import (
	"connectcore/pkg/domain"
	"context"
	"errors"
	"fmt"
)

// guardInTx evaluates the deletion guard against the transaction snapshot.
func guardInTx(tx Transaction, kind Kind, id string) GuardReport {
	return CheckDeletion(BuildIndex(datasetFromView(tx.Snapshot())), kind, id)
}

func softDeletable(kind Kind, id string) error {
	if !kind.Collection().SoftDeletable() {
		return fmt.Errorf("%s %q: records of this kind cannot be moved to the trash", kind.Label(), id)
	}
	return nil
}

// softDeleteInTx moves one record to the trash, returning the guard report
// when a stakeholder or organization is still referenced.
func (s *Service) softDeleteInTx(tx Transaction, kind Kind, id string) error {
	if err := softDeletable(kind, id); err != nil {
		return err
	}
	if _, ok := tx.Snapshot().Find(kind.Collection(), id); !ok {
		return ErrNotFound{Kind: kind, ID: id}
	}
	if report := guardInTx(tx, kind, id); report.Blocked {
		return GuardError{Report: report}
	}
	return tx.Update(kind.Collection(), id, Patch{"deletedAt": s.clock.Now()})
}

func restoreInTx(tx Transaction, kind Kind, id string) error {
	if err := softDeletable(kind, id); err != nil {
		return err
	}
	if _, ok := tx.Snapshot().Find(kind.Collection(), id); !ok {
		return ErrNotFound{Kind: kind, ID: id}
	}
	return tx.Update(kind.Collection(), id, Patch{"deletedAt": nil})
}

// permanentDeleteInTx removes a record. Connects take their activities and
// success story with them; leads do not cascade.
func permanentDeleteInTx(tx Transaction, kind Kind, id string) error {
	c := kind.Collection()
	if c == "" {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if _, ok := tx.Snapshot().Find(c, id); !ok {
		return ErrNotFound{Kind: kind, ID: id}
	}
	if report := guardInTx(tx, kind, id); report.Blocked {
		return GuardError{Report: report}
	}
	if err := tx.Delete(c, id); err != nil {
		return err
	}
	if kind != KindConnect {
		return nil
	}
	view := tx.Snapshot()
	for _, dep := range []Collection{domain.CollectionActivities, domain.CollectionSuccessStories} {
		for _, doc := range view.Where(dep, "connectId", id) {
			if err := tx.Delete(dep, doc.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// SoftDelete moves a connect, lead, organization or stakeholder to the trash.
// A blocked stakeholder or organization returns the guard report together
// with a GuardError and nothing is written.
func (s *Service) SoftDelete(ctx context.Context, kind Kind, id string) (GuardReport, error) {
	var report GuardReport
	err := s.run(ctx, "soft_delete_"+string(kind), kind, id, func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			report = GuardReport{Kind: kind, ID: id}
			err := s.softDeleteInTx(tx, kind, id)
			var ge GuardError
			if errors.As(err, &ge) {
				report = ge.Report
			}
			return err
		})
	})
	return report, err
}

// Restore clears the trash marker of a record.
func (s *Service) Restore(ctx context.Context, kind Kind, id string) error {
	return s.run(ctx, "restore_"+string(kind), kind, id, func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			return restoreInTx(tx, kind, id)
		})
	})
}

// PermanentDelete removes a record for good. Deleting a connect removes its
// activities and success story in the same batch.
func (s *Service) PermanentDelete(ctx context.Context, kind Kind, id string) error {
	if kind == KindActivity {
		return s.DeleteActivity(ctx, id)
	}
	return s.run(ctx, "permanent_delete_"+string(kind), kind, id, func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			return permanentDeleteInTx(tx, kind, id)
		})
	})
}

// DeleteTaxonomy removes a status, intent level, need type or non-revenue
// tag. The first three are refused while an active record carries them.
func (s *Service) DeleteTaxonomy(ctx context.Context, kind Kind, id string) error {
	switch kind {
	case KindStatus, KindIntentLevel, KindNeedType, KindNonRevenueTag:
	default:
		return fmt.Errorf("%s is not a taxonomy", kind.Label())
	}
	return s.PermanentDelete(ctx, kind, id)
}

// DeleteActivity removes an activity and touches its parent.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	return s.run(ctx, "delete_activity", KindActivity, id, func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			a, err := findRecord[Activity](tx.Snapshot(), KindActivity, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(domain.CollectionActivities, id); err != nil {
				return err
			}
			touchParent(tx, a)
			return nil
		})
	})
}

// DeleteSuccessStory removes a success story.
func (s *Service) DeleteSuccessStory(ctx context.Context, id string) error {
	return s.PermanentDelete(ctx, KindSuccessStory, id)
}

// ItemRef identifies one record of a multi-select.
type ItemRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// ItemError reports a failed item of a bulk operation.
type ItemError struct {
	Item ItemRef `json:"item"`
	Err  string  `json:"error"`
}

// BulkReport summarises a bulk operation. Blocked items were refused by a
// deletion guard and are not listed under Failed.
type BulkReport struct {
	Succeeded []ItemRef     `json:"succeeded"`
	Failed    []ItemError   `json:"failed,omitempty"`
	Blocked   []GuardReport `json:"blocked,omitempty"`
}

// Summary renders the counts of the report.
func (r BulkReport) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d blocked", len(r.Succeeded), len(r.Failed), len(r.Blocked))
}

func (r *BulkReport) fail(item ItemRef, err error) {
	var ge GuardError
	if errors.As(err, &ge) {
		r.Blocked = append(r.Blocked, ge.Report)
		return
	}
	r.Failed = append(r.Failed, ItemError{Item: item, Err: err.Error()})
}

// bulk applies op to every item in one batch. Items refused up front are
// reported individually; if the batch itself fails each item is retried in
// its own batch so one bad item does not sink its siblings.
func (s *Service) bulk(ctx context.Context, name string, items []ItemRef, op func(tx Transaction, item ItemRef) error) BulkReport {
	var report BulkReport
	if len(items) == 0 {
		return report
	}
	var pending []ItemRef
	err := s.run(ctx, name, "", "", func(ctx context.Context) (string, error) {
		return "", s.transact(ctx, func(tx Transaction) error {
			pending = pending[:0]
			for _, item := range items {
				if err := op(tx, item); err != nil {
					var (
						ge GuardError
						nf ErrNotFound
					)
					if errors.As(err, &ge) || errors.As(err, &nf) {
						report.fail(item, err)
						continue
					}
					return err
				}
				pending = append(pending, item)
			}
			return nil
		})
	})
	if err == nil {
		report.Succeeded = append(report.Succeeded, pending...)
		return report
	}
	s.logger.Warn("bulk batch failed, retrying items individually", "operation", name, "error", err)
	report = BulkReport{}
	for _, item := range items {
		itemErr := s.run(ctx, name, item.Kind, item.ID, func(ctx context.Context) (string, error) {
			return item.ID, s.transact(ctx, func(tx Transaction) error { return op(tx, item) })
		})
		if itemErr != nil {
			report.fail(item, itemErr)
			continue
		}
		report.Succeeded = append(report.Succeeded, item)
	}
	return report
}

// BulkSoftDelete moves every item to the trash in one batch. Guarded items
// that are still referenced are reported as blocked.
func (s *Service) BulkSoftDelete(ctx context.Context, items []ItemRef) BulkReport {
	return s.bulk(ctx, "bulk_soft_delete", items, func(tx Transaction, item ItemRef) error {
		return s.softDeleteInTx(tx, item.Kind, item.ID)
	})
}

// BulkRestore restores every item in one batch.
func (s *Service) BulkRestore(ctx context.Context, items []ItemRef) BulkReport {
	return s.bulk(ctx, "bulk_restore", items, func(tx Transaction, item ItemRef) error {
		return restoreInTx(tx, item.Kind, item.ID)
	})
}

// BulkPermanentDelete removes non-connect items in one batch, then deletes
// each connect together with its activities and story in its own batch.
func (s *Service) BulkPermanentDelete(ctx context.Context, items []ItemRef) BulkReport {
	var others, connects []ItemRef
	for _, item := range items {
		if item.Kind == KindConnect {
			connects = append(connects, item)
		} else {
			others = append(others, item)
		}
	}
	report := s.bulk(ctx, "bulk_permanent_delete", others, func(tx Transaction, item ItemRef) error {
		return permanentDeleteInTx(tx, item.Kind, item.ID)
	})
	for _, item := range connects {
		if err := s.PermanentDelete(ctx, item.Kind, item.ID); err != nil {
			report.fail(item, err)
			continue
		}
		report.Succeeded = append(report.Succeeded, item)
	}
	return report
}
