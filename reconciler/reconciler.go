// Package reconciler brings the local instance store back into
// agreement with provider-observed truth: stale records are pruned,
// configuration drift is reported but never auto-corrected.
package reconciler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yairfalse/tila/journal"
	"github.com/yairfalse/tila/providers"
	"github.com/yairfalse/tila/state"
	"github.com/yairfalse/tila/types"
)

// Reconciler compares store contents against provider truth
type Reconciler struct {
	provider providers.InstanceAPI
	store    *state.Store
	journal  *journal.Journal
	logger   zerolog.Logger
}

// New creates a reconciler. The journal may be nil.
func New(provider providers.InstanceAPI, store *state.Store, jrnl *journal.Journal, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		provider: provider,
		store:    store,
		journal:  jrnl,
		logger:   logger,
	}
}

// Sync removes every record whose instance id is no longer visible on
// the provider side and persists the pruned store. Runs at the start of
// every session so stale records never mislead idempotency checks.
func (r *Reconciler) Sync(ctx context.Context) ([]types.InstanceRecord, error) {
	liveIDs, err := r.provider.ListAllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	var pruned []types.InstanceRecord
	for _, rec := range r.store.Records() {
		if rec.InstanceID == "" {
			continue
		}
		if _, live := liveIDs[rec.InstanceID]; live {
			continue
		}
		r.store.Remove(rec.InstanceID)
		pruned = append(pruned, rec)
		r.logger.Info().
			Str("name", rec.Name).
			Str("instance_id", rec.InstanceID).
			Msg("pruned stale record")
		r.appendEvent(journal.EventPruned, rec.Name, rec.InstanceID, "instance no longer exists")
	}

	if len(pruned) == 0 {
		return nil, nil
	}
	if err := r.store.Save(); err != nil {
		return pruned, fmt.Errorf("save state: %w", err)
	}
	return pruned, nil
}

// CheckDrift compares each tracked record against its live
// configuration. A terminated instance removes the record instead of
// reporting drift; a diverged instance type yields one finding and
// leaves the record untouched.
func (r *Reconciler) CheckDrift(ctx context.Context) ([]types.DriftFinding, error) {
	var findings []types.DriftFinding
	removed := false

	for _, rec := range r.store.Records() {
		if rec.InstanceID == "" {
			continue
		}

		status, err := r.provider.DescribeState(ctx, rec.InstanceID)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("instance_id", rec.InstanceID).
				Msg("state lookup failed, skipping drift check")
			continue
		}
		if status.IsTerminated() {
			r.store.Remove(rec.InstanceID)
			removed = true
			r.logger.Info().
				Str("name", rec.Name).
				Str("instance_id", rec.InstanceID).
				Msg("removed record for terminated instance")
			r.appendEvent(journal.EventPruned, rec.Name, rec.InstanceID, "instance terminated")
			continue
		}

		liveType, err := r.provider.DescribeType(ctx, rec.InstanceID)
		if err != nil || liveType == "" {
			r.logger.Warn().Err(err).
				Str("instance_id", rec.InstanceID).
				Msg("type lookup failed, skipping drift check")
			continue
		}
		if liveType != rec.InstanceType {
			finding := types.DriftFinding{
				Name:       rec.Name,
				InstanceID: rec.InstanceID,
				Desired:    rec.InstanceType,
				Actual:     liveType,
			}
			findings = append(findings, finding)
			r.logger.Warn().
				Str("name", finding.Name).
				Str("instance_id", finding.InstanceID).
				Str("desired", finding.Desired).
				Str("actual", finding.Actual).
				Msg("instance type drift detected")
			r.appendEvent(journal.EventDrift, finding.Name, finding.InstanceID,
				fmt.Sprintf("desired=%s actual=%s", finding.Desired, finding.Actual))
		}
	}

	if removed {
		if err := r.store.Save(); err != nil {
			return findings, fmt.Errorf("save state: %w", err)
		}
	}
	return findings, nil
}

// appendEvent journals an event; audit failures never abort reconciliation
func (r *Reconciler) appendEvent(eventType journal.EventType, name, instanceID, detail string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Append(eventType, name, instanceID, detail); err != nil {
		r.logger.Warn().Err(err).Msg("journal append failed")
	}
}
