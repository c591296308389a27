// Package capture persists user mutations made while offline: each
// submission becomes a queued operation for later replay, a tracked
// offline change, and an optimistic local cache write.
package capture

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satchel-app/satchel/internal/events"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/store"
)

// Recorder captures offline mutations into the store.
type Recorder struct {
	store *store.Store
	bus   *events.Bus
}

// NewRecorder creates a Recorder.
func NewRecorder(st *store.Store, bus *events.Bus) *Recorder {
	return &Recorder{store: st, bus: bus}
}

// Capture records one mutation. For creates the objectID argument is
// ignored and a temporary local id is assigned; it is reconciled to the
// server id when the operation is replayed. All writes happen in one
// transaction so a crash never leaves a queued operation without its
// matching change record.
func (r *Recorder) Capture(kind models.EntityKind, action models.ChangeAction, objectID string, payload json.RawMessage) (*models.PendingOperation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	var (
		method   string
		endpoint string
	)
	switch action {
	case models.ActionCreate:
		objectID = models.NewLocalID()
		var err error
		payload, err = injectID(payload, objectID)
		if err != nil {
			return nil, err
		}
		method = "POST"
		endpoint = kind.Endpoint()
	case models.ActionUpdate:
		if objectID == "" {
			return nil, fmt.Errorf("update requires an object id")
		}
		method = "PATCH"
		endpoint = kind.RecordEndpoint(objectID)
	case models.ActionDelete:
		if objectID == "" {
			return nil, fmt.Errorf("delete requires an object id")
		}
		method = "DELETE"
		endpoint = kind.RecordEndpoint(objectID)
	default:
		return nil, fmt.Errorf("unknown change action %q", action)
	}

	op := &models.PendingOperation{
		Kind:      kind,
		Method:    method,
		Endpoint:  endpoint,
		Payload:   payload,
		LocalID:   objectID,
		CreatedAt: time.Now(),
	}

	err := r.store.Transaction(func(tx *store.Store) error {
		if err := tx.AddPendingOperation(op); err != nil {
			return err
		}
		if err := tx.AddOfflineChange(&models.OfflineChange{
			Kind:      kind,
			ObjectID:  objectID,
			Action:    action,
			Payload:   payload,
			CreatedAt: op.CreatedAt,
		}); err != nil {
			return err
		}
		return r.applyLocally(tx, kind, action, objectID, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("capture %s %s: %w", action, kind, err)
	}

	r.bus.Publish(events.FormSubmittedOffline{Kind: kind, LocalID: objectID})
	return op, nil
}

// applyLocally updates the cache so views reflect the mutation before the
// server has seen it.
func (r *Recorder) applyLocally(tx *store.Store, kind models.EntityKind, action models.ChangeAction, objectID string, payload json.RawMessage) error {
	if action == models.ActionDelete {
		return tx.DeleteRecord(kind, objectID)
	}

	// The caller's objectID is authoritative; update bodies may omit it.
	rec, err := models.RecordForObject(objectID, payload)
	if err != nil {
		return fmt.Errorf("parse captured payload: %w", err)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	if action == models.ActionUpdate {
		// Partial updates overlay the cached copy rather than replacing it.
		existing, err := tx.Get(kind, objectID)
		if err != nil {
			return err
		}
		if existing != nil {
			merged, err := overlayFields(existing.Payload, payload)
			if err != nil {
				return err
			}
			rec.Payload = merged
			if rec.SchoolID == 0 {
				rec.SchoolID = existing.SchoolID
			}
		}
	}

	return tx.Put(kind, rec)
}

// injectID sets the id field on a JSON object payload.
func injectID(payload json.RawMessage, id string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("parse captured payload: %w", err)
	}
	encoded, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	fields["id"] = encoded
	return json.Marshal(fields)
}

// overlayFields merges update fields over a base JSON object.
func overlayFields(base, update json.RawMessage) (json.RawMessage, error) {
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("parse cached payload: %w", err)
	}
	var updates map[string]json.RawMessage
	if err := json.Unmarshal(update, &updates); err != nil {
		return nil, fmt.Errorf("parse update payload: %w", err)
	}
	for k, v := range updates {
		merged[k] = v
	}
	return json.Marshal(merged)
}
