package services

import (
	"context"
	"errors"
	"slices"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
)

// DanglingRef is an account checks-list entry that does not point at a
// check owned by that account.
type DanglingRef struct {
	Phone   string `json:"phone"`
	CheckID string `json:"checkId"`
}

// ReconcileReport is the outcome of one consistency scan.
type ReconcileReport struct {
	Accounts int           `json:"accounts"`
	Checks   int           `json:"checks"`
	Orphans  []string      `json:"orphans"`
	Dangling []DanglingRef `json:"dangling"`
	// Unreadable lists records that could not be decoded, as collection/key.
	Unreadable []string `json:"unreadable"`
}

// Consistent reports whether the scan found nothing out of step.
func (r *ReconcileReport) Consistent() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0 && len(r.Unreadable) == 0
}

// Reconciler scans accounts and checks for association mismatches left
// behind by interrupted operations. It only reports; nothing is repaired.
type Reconciler struct {
	Deps
}

func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{Deps: d.withDefaults("reconciler")}
}

// Run performs one scan. Records deleted while the scan is in progress are
// skipped. Storage failures abort the scan.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{Orphans: []string{}, Dangling: []DanglingRef{}, Unreadable: []string{}}

	checks, err := r.loadChecks(ctx, report)
	if err != nil {
		return nil, err
	}

	phones, err := r.Store.Keys(ctx, common.CollectionAccounts)
	if err != nil {
		return nil, err
	}

	// owner phone -> listed check ids
	listed := make(map[string][]string, len(phones))
	for _, phone := range phones {
		var acc models.Account
		if skip, err := r.read(ctx, common.CollectionAccounts, phone, &acc, report); err != nil {
			return nil, err
		} else if skip {
			continue
		}
		report.Accounts++
		listed[phone] = acc.Checks

		for _, id := range acc.Checks {
			c, ok := checks[id]
			if !ok || c.UserPhone != phone {
				report.Dangling = append(report.Dangling, DanglingRef{Phone: phone, CheckID: id})
			}
		}
	}

	ids := make([]string, 0, len(checks))
	for id := range checks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if !slices.Contains(listed[checks[id].UserPhone], id) {
			report.Orphans = append(report.Orphans, id)
		}
	}

	if report.Consistent() {
		r.Logger.Info(ctx, "reconcile finished", "accounts", report.Accounts, "checks", report.Checks)
	} else {
		r.Logger.Warn(ctx, "reconcile found inconsistencies",
			"accounts", report.Accounts, "checks", report.Checks,
			"orphans", report.Orphans, "dangling", len(report.Dangling), "unreadable", report.Unreadable)
	}
	return report, nil
}

func (r *Reconciler) loadChecks(ctx context.Context, report *ReconcileReport) (map[string]models.Check, error) {
	keys, err := r.Store.Keys(ctx, common.CollectionChecks)
	if err != nil {
		return nil, err
	}

	checks := make(map[string]models.Check, len(keys))
	for _, id := range keys {
		var c models.Check
		if skip, err := r.read(ctx, common.CollectionChecks, id, &c, report); err != nil {
			return nil, err
		} else if skip {
			continue
		}
		checks[id] = c
	}
	report.Checks = len(checks)
	return checks, nil
}

// read decodes one record. It reports skip for records that vanished or
// do not parse; the latter are noted in the report.
func (r *Reconciler) read(ctx context.Context, collection, key string, v any, report *ReconcileReport) (bool, error) {
	err := r.Store.Read(ctx, collection, key, v)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, common.ErrorNotFound):
		return true, nil
	case errors.Is(err, common.ErrorCorrupt):
		report.Unreadable = append(report.Unreadable, collection+"/"+key)
		return true, nil
	default:
		return false, err
	}
}
