// Package journal keeps an append-only audit trail of provisioning events.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// EventType defines the type of journal event
type EventType string

const (
	EventCreated EventType = "created"
	EventAdopted EventType = "adopted"
	EventPruned  EventType = "pruned"
	EventDrift   EventType = "drift"
	EventDeleted EventType = "deleted"
)

// Event is a single journal entry
type Event struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	Name       string    `json:"name,omitempty"`
	InstanceID string    `json:"instance_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

var bucketEvents = []byte("events")

// Journal is an append-only event log backed by bbolt
type Journal struct {
	mu sync.Mutex
	db *bbolt.DB
}

// Open creates or opens the journal database at path
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records one event. Sequence numbers come from the bucket and
// are monotonic across reopens.
func (j *Journal) Append(eventType EventType, name, instanceID, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		event := Event{
			Sequence:   seq,
			Timestamp:  time.Now().UTC(),
			Type:       eventType,
			Name:       name,
			InstanceID: instanceID,
			Detail:     detail,
		}
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bucket.Put(key[:], data)
	})
}

// Events returns all recorded events in append order
func (j *Journal) Events() ([]Event, error) {
	var events []Event
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, value []byte) error {
			var event Event
			if err := json.Unmarshal(value, &event); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
