package syncer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// Resolution is a conflict policy's decision.
type Resolution string

const (
	// ResolutionKeepLocal pushes the local snapshot to the server; the
	// conflict clears only after the push succeeds.
	ResolutionKeepLocal Resolution = "keep_local"
	// ResolutionKeepServer overwrites the local cache with the server
	// snapshot.
	ResolutionKeepServer Resolution = "keep_server"
	// ResolutionMerge combines both snapshots field-wise, caches the
	// result and pushes it to the server.
	ResolutionMerge Resolution = "merge"
)

// Policy decides how a detected conflict for one entity kind is resolved.
type Policy func(c *models.Conflict) Resolution

// Registry maps entity kinds to resolution policies. Kinds without a
// registered policy are a valid state: their conflicts stay queued until a
// policy appears or a human resolves them.
type Registry struct {
	mu       sync.RWMutex
	policies map[models.EntityKind]Policy
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[models.EntityKind]Policy)}
}

// Register installs the policy for one entity kind, replacing any previous
// registration.
func (r *Registry) Register(kind models.EntityKind, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[kind] = p
}

// PolicyFor returns the registered policy for a kind, if any.
func (r *Registry) PolicyFor(kind models.EntityKind) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[kind]
	return p, ok
}

// Fixed returns a policy that always answers the same resolution.
func Fixed(res Resolution) Policy {
	return func(*models.Conflict) Resolution {
		return res
	}
}

// DefaultRegistry returns the policy set wired at startup: teachers' grade
// entries win over concurrent server edits, attendance merges, generated
// report cards defer to the server. Everything else stays unresolved until
// a policy is registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(models.KindGrade, Fixed(ResolutionKeepLocal))
	r.Register(models.KindAttendance, Fixed(ResolutionMerge))
	r.Register(models.KindReportCard, Fixed(ResolutionKeepServer))
	return r
}

// MergeSnapshots combines two record documents field-wise, local values
// overriding server values for any field present locally. The result is
// stamped with a merge timestamp and marker.
func MergeSnapshots(local, server json.RawMessage, now time.Time) (json.RawMessage, error) {
	var merged map[string]any
	if len(server) > 0 {
		if err := json.Unmarshal(server, &merged); err != nil {
			return nil, fmt.Errorf("parse server snapshot: %w", err)
		}
	}
	if merged == nil {
		merged = make(map[string]any)
	}

	var localFields map[string]any
	if len(local) > 0 {
		if err := json.Unmarshal(local, &localFields); err != nil {
			return nil, fmt.Errorf("parse local snapshot: %w", err)
		}
	}
	for key, value := range localFields {
		merged[key] = value
	}

	merged["_merged"] = true
	merged["_merged_at"] = now.UTC().Format(time.RFC3339)

	return json.Marshal(merged)
}
