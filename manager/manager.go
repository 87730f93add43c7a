// Package manager implements the idempotent create-or-adopt, wait, and
// delete workflows layered on the state store and the provider.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/tila/journal"
	"github.com/yairfalse/tila/providers"
	"github.com/yairfalse/tila/state"
	"github.com/yairfalse/tila/types"
)

// ErrWaitTimeout means a wait loop exceeded its deadline before the
// instance reached the expected state. State is left as last persisted;
// the operator may retry.
var ErrWaitTimeout = errors.New("timed out waiting for instance state")

const defaultPollInterval = 5 * time.Second

// Options configure manager behavior
type Options struct {
	// PollInterval is the fixed sleep between state polls.
	PollInterval time.Duration
	// WaitTimeout bounds each wait loop; zero means no deadline.
	WaitTimeout time.Duration
}

// Manager layers provisioning workflows over store and provider
type Manager struct {
	provider providers.InstanceAPI
	store    *state.Store
	journal  *journal.Journal
	logger   zerolog.Logger
	options  Options
}

// New creates a manager. The journal may be nil.
func New(provider providers.InstanceAPI, store *state.Store, jrnl *journal.Journal, logger zerolog.Logger, options Options) *Manager {
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}
	return &Manager{
		provider: provider,
		store:    store,
		journal:  jrnl,
		logger:   logger,
		options:  options,
	}
}

// CreateOrAdopt converges the logical name onto exactly one live
// instance. Repeated invocations with the same name return the same
// instance id and never create duplicates.
func (m *Manager) CreateOrAdopt(ctx context.Context, spec types.InstanceSpec) (types.InstanceRecord, error) {
	if err := spec.Validate(); err != nil {
		return types.InstanceRecord{}, err
	}

	rec, found := m.store.FindByName(spec.Name)
	switch {
	case found && rec.InstanceID != "":
		status, err := m.provider.DescribeState(ctx, rec.InstanceID)
		if err != nil {
			return types.InstanceRecord{}, err
		}
		if !status.IsTerminated() {
			return m.adopt(ctx, rec, spec)
		}
		// Stale record for a terminated instance: drop it and fall
		// through to fresh creation under the same name.
		m.store.Remove(rec.InstanceID)
		if err := m.store.Save(); err != nil {
			return types.InstanceRecord{}, fmt.Errorf("save state: %w", err)
		}
		m.logger.Info().
			Str("name", rec.Name).
			Str("instance_id", rec.InstanceID).
			Msg("dropped stale record for terminated instance")
	case found:
		// A record without an id means creation never completed.
		m.store.RemoveByName(rec.Name)
		if err := m.store.Save(); err != nil {
			return types.InstanceRecord{}, fmt.Errorf("save state: %w", err)
		}
	}

	return m.create(ctx, spec)
}

// adopt returns the existing record once the instance is running. Type
// drift is warned about but never corrected.
func (m *Manager) adopt(ctx context.Context, rec types.InstanceRecord, spec types.InstanceSpec) (types.InstanceRecord, error) {
	liveType, err := m.provider.DescribeType(ctx, rec.InstanceID)
	if err == nil && liveType != "" && liveType != spec.InstanceType {
		m.logger.Warn().
			Str("name", rec.Name).
			Str("instance_id", rec.InstanceID).
			Str("desired", spec.InstanceType).
			Str("actual", liveType).
			Msg("instance type drift, adopting existing instance anyway")
	}

	m.logger.Info().
		Str("name", rec.Name).
		Str("instance_id", rec.InstanceID).
		Msg("adopting existing instance")
	m.appendEvent(journal.EventAdopted, rec.Name, rec.InstanceID, "")

	if err := m.WaitUntilRunning(ctx, rec.InstanceID); err != nil {
		return rec, err
	}
	adopted, _ := m.store.FindByID(rec.InstanceID)
	return adopted, nil
}

// create provisions a fresh instance, persisting the pending record
// before waiting so an interrupted wait never loses the id.
func (m *Manager) create(ctx context.Context, spec types.InstanceSpec) (types.InstanceRecord, error) {
	instanceID, err := m.provider.CreateInstance(ctx, spec)
	if err != nil {
		return types.InstanceRecord{}, err
	}

	rec := spec.Record(instanceID, types.StatusPending)
	m.store.Upsert(rec)
	if err := m.store.Save(); err != nil {
		return rec, fmt.Errorf("save state: %w", err)
	}

	m.logger.Info().
		Str("name", spec.Name).
		Str("instance_id", instanceID).
		Str("instance_type", spec.InstanceType).
		Msg("instance created")
	m.appendEvent(journal.EventCreated, spec.Name, instanceID, spec.InstanceType)

	if err := m.WaitUntilRunning(ctx, instanceID); err != nil {
		return rec, err
	}
	created, _ := m.store.FindByID(instanceID)
	return created, nil
}

// WaitUntilRunning polls the provider until the instance reports
// running, then persists the observed status. The configured
// WaitTimeout bounds the loop; cancelling ctx stops it early.
func (m *Manager) WaitUntilRunning(ctx context.Context, instanceID string) error {
	return m.waitFor(ctx, instanceID, types.StatusRunning)
}

// Delete terminates and untracks the named instance. Deleting a name
// that is not tracked is a no-op success. The record is removed only
// after the provider confirms termination.
func (m *Manager) Delete(ctx context.Context, name string) error {
	rec, found := m.store.FindByName(name)
	if !found {
		m.logger.Info().Str("name", name).Msg("no tracked instance, nothing to delete")
		return nil
	}

	if rec.InstanceID == "" {
		m.store.RemoveByName(name)
		return m.store.Save()
	}

	if err := m.provider.Terminate(ctx, rec.InstanceID); err != nil {
		return err
	}
	if err := m.waitFor(ctx, rec.InstanceID, types.StatusTerminated); err != nil {
		return err
	}

	m.store.Remove(rec.InstanceID)
	if err := m.store.Save(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	m.logger.Info().
		Str("name", name).
		Str("instance_id", rec.InstanceID).
		Msg("instance deleted")
	m.appendEvent(journal.EventDeleted, name, rec.InstanceID, "")
	return nil
}

func (m *Manager) waitFor(ctx context.Context, instanceID string, want types.InstanceStatus) error {
	if m.options.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.options.WaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(m.options.PollInterval)
	defer ticker.Stop()

	for {
		status, err := m.provider.DescribeState(ctx, instanceID)
		if err != nil {
			return err
		}
		if status == want {
			if m.store.SetStatus(instanceID, status) {
				if err := m.store.Save(); err != nil {
					return fmt.Errorf("save state: %w", err)
				}
			}
			return nil
		}

		m.logger.Debug().
			Str("instance_id", instanceID).
			Str("status", string(status)).
			Str("want", string(want)).
			Msg("waiting for instance state")

		select {
		case <-ctx.Done():
			if m.options.WaitTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s did not reach %s within %s",
					ErrWaitTimeout, instanceID, want, m.options.WaitTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// appendEvent journals an event; audit failures never abort a workflow
func (m *Manager) appendEvent(eventType journal.EventType, name, instanceID, detail string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Append(eventType, name, instanceID, detail); err != nil {
		m.logger.Warn().Err(err).Msg("journal append failed")
	}
}
