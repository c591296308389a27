// Package syncer drives synchronization between the local durable store
// and the school-management server: replaying the pending-operation queue,
// ingesting server deltas, and resolving detected conflicts.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satchel-app/satchel/internal/api"
	"github.com/satchel-app/satchel/internal/events"
	"github.com/satchel-app/satchel/internal/log"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/pkg/version"
)

var (
	// ErrSyncInProgress is returned to a trigger that lost the
	// at-most-one-in-flight race. The pass already running will emit the
	// completion event.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoCredentials aborts a pass when no auth context is stored. Not
	// retried automatically; the user must re-authenticate.
	ErrNoCredentials = errors.New("no credentials")

	// ErrClientTooOld aborts a pass when the server's minimum client
	// version is newer than this build.
	ErrClientTooOld = errors.New("client version too old for server")
)

// DefaultMaxRetries bounds replay attempts per operation. Operations that
// exceed it are demoted to stalled, never deleted.
const DefaultMaxRetries = 25

// API is the server surface a sync pass needs.
type API interface {
	PullChanges(ctx context.Context, lastSync time.Time, schoolID int64, syncState string) (*api.DeltaResponse, error)
	Execute(ctx context.Context, op *models.PendingOperation) (*api.ExecuteResult, error)
	UpdateRecord(ctx context.Context, kind models.EntityKind, id string, payload json.RawMessage) (json.RawMessage, error)
}

// ClientFactory builds an API client bound to the given bearer token. The
// engine constructs a fresh client each pass so a re-login takes effect
// without restarting.
type ClientFactory func(token string) API

// Result summarizes one sync pass.
type Result struct {
	Synced   int // operations acknowledged and removed
	Failed   int // operations that failed this pass (including conflicts)
	Pulled   int // server records ingested into the cache
	Resolved int // conflicts cleared
}

// Config holds engine tunables.
type Config struct {
	MaxRetries int
}

// Engine orchestrates sync passes. It holds no entity data itself; all
// persisted state lives in the store, and the in-memory flags here vanish
// on restart.
type Engine struct {
	store     *store.Store
	bus       *events.Bus
	resolvers *Registry
	newClient ClientFactory

	maxRetries int

	mu         sync.Mutex
	inProgress bool
}

// New creates a sync engine.
func New(st *store.Store, bus *events.Bus, resolvers *Registry, factory ClientFactory, cfg Config) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Engine{
		store:      st,
		bus:        bus,
		resolvers:  resolvers,
		newClient:  factory,
		maxRetries: cfg.MaxRetries,
	}
}

// Resolvers returns the engine's policy registry.
func (e *Engine) Resolvers() *Registry {
	return e.resolvers
}

// InProgress reports whether a pass is currently running.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inProgress
}

// Sync runs one pass unless another is already in flight, in which case it
// is a no-op returning ErrSyncInProgress.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	return e.run(ctx, false)
}

// ForceSync runs one pass bypassing the busy guard. Used for explicit
// manual sync requests only.
func (e *Engine) ForceSync(ctx context.Context) (*Result, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, force bool) (*Result, error) {
	e.mu.Lock()
	if e.inProgress && !force {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	owned := !e.inProgress
	e.inProgress = true
	e.mu.Unlock()

	if owned {
		defer func() {
			e.mu.Lock()
			e.inProgress = false
			e.mu.Unlock()
		}()
	}

	result, err := e.pass(ctx)
	if err != nil {
		e.bus.Publish(events.SyncFailed{Err: err})
		return nil, err
	}
	e.bus.Publish(events.SyncCompleted{Synced: result.Synced, Failed: result.Failed})
	return result, nil
}

// pass executes one end-to-end synchronization pass.
func (e *Engine) pass(ctx context.Context) (*Result, error) {
	e.bus.Publish(events.SyncStarted{})

	userCtx, err := e.store.UserContext()
	if err != nil {
		return nil, fmt.Errorf("load user context: %w", err)
	}
	if userCtx == nil {
		return nil, ErrNoCredentials
	}
	client := e.newClient(userCtx.Token)

	// The delta window starts where the previous pass left off; read it
	// before the pass stamps a new value.
	windowStart, err := e.store.LastSyncTime()
	if err != nil {
		return nil, fmt.Errorf("load last sync time: %w", err)
	}

	result := &Result{}

	// The queue is snapshotted here; mutations captured mid-pass wait for
	// the next pass.
	ops, err := e.store.PendingOperations(models.OperationPending)
	if err != nil {
		return nil, fmt.Errorf("load pending operations: %w", err)
	}

	// Strictly sequential, oldest first, so dependent mutations against
	// the same record apply in causal order.
	for i := range ops {
		if err := e.replay(ctx, client, &ops[i], result); err != nil {
			return nil, err
		}
	}

	// Stamped regardless of per-operation failures.
	if err := e.store.SetLastSyncTime(time.Now()); err != nil {
		return nil, fmt.Errorf("record last sync time: %w", err)
	}

	if err := e.ingestDeltas(ctx, client, userCtx, windowStart, result); err != nil {
		if errors.Is(err, ErrClientTooOld) {
			return nil, err
		}
		// A failed pull leaves the cache stale but the pass useful; the
		// next pass retries the pull.
		log.Errorf("sync: delta pull failed: %v", err)
	}

	e.resolveConflicts(ctx, client, result)

	log.Infof("sync: %d pushed, %d failed, %d pulled, %d resolved",
		result.Synced, result.Failed, result.Pulled, result.Resolved)
	return result, nil
}

// replay executes one queued operation. Only pass-fatal conditions return
// an error; per-operation failures are absorbed into queue state.
func (e *Engine) replay(ctx context.Context, client API, op *models.PendingOperation, result *Result) error {
	execResult, err := client.Execute(ctx, op)
	if err == nil {
		result.Synced++
		return e.acknowledge(op, execResult)
	}

	var conflict *api.ConflictError
	switch {
	case errors.As(err, &conflict):
		result.Failed++
		return e.recordConflict(op, conflict)
	case errors.Is(err, api.ErrUnauthorized):
		// Stale auth aborts the pass; the operation stays pending and
		// untouched for after re-authentication.
		return fmt.Errorf("replay %s %s: %w", op.Method, op.Endpoint, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		result.Failed++
		return e.recordFailure(op, err)
	}
}

// acknowledge removes a confirmed operation and applies any echoed entity
// data to the cache, reconciling temporary ids for offline creates.
func (e *Engine) acknowledge(op *models.PendingOperation, execResult *api.ExecuteResult) error {
	objectID := op.LocalID

	if len(execResult.Record) > 0 {
		rec, err := models.RecordFromJSON(execResult.Record)
		if err != nil {
			return fmt.Errorf("parse acknowledged record: %w", err)
		}
		objectID = rec.ID

		if op.LocalID != "" && op.LocalID != rec.ID {
			// Offline create confirmed: move the cache row and its
			// tracked changes into the server id space.
			if err := e.store.RenameRecord(op.Kind, op.LocalID, rec); err != nil {
				return fmt.Errorf("reconcile local id %s: %w", op.LocalID, err)
			}
			if err := e.store.ReassignOfflineObject(op.Kind, op.LocalID, rec.ID); err != nil {
				return fmt.Errorf("reassign offline changes: %w", err)
			}
		} else if err := e.store.Put(op.Kind, rec); err != nil {
			return fmt.Errorf("cache acknowledged record: %w", err)
		}
	}

	if objectID == "" {
		objectID = objectIDFromPayload(op.Payload)
	}
	if objectID != "" {
		// Bounded by the operation's capture time: changes recorded after
		// the queue snapshot are not covered by this acknowledgement.
		if err := e.store.RemoveOfflineChangesBefore(op.Kind, objectID, op.CreatedAt); err != nil {
			return fmt.Errorf("clear offline changes: %w", err)
		}
	}

	return e.store.RemoveOperation(op.ID)
}

// recordConflict stores the divergence and parks the operation. The
// operation is only removed when its conflict is resolved.
func (e *Engine) recordConflict(op *models.PendingOperation, conflict *api.ConflictError) error {
	objectID := op.LocalID
	if objectID == "" {
		objectID = objectIDFromPayload(op.Payload)
	}
	if len(conflict.Server) > 0 && objectID == "" {
		if rec, err := models.RecordFromJSON(conflict.Server); err == nil {
			objectID = rec.ID
		}
	}

	opID := op.ID
	record := &models.Conflict{
		Kind:        op.Kind,
		ObjectID:    objectID,
		ServerData:  conflict.Server,
		LocalData:   op.Payload,
		OperationID: &opID,
		DetectedAt:  time.Now(),
	}
	if err := e.store.AddConflict(record); err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}

	op.Status = models.OperationConflicted
	op.LastError = conflict.Error()
	return e.store.SaveOperation(op)
}

// recordFailure updates the operation's retry bookkeeping. Operations that
// exceed the retry bound are demoted to stalled rather than dropped.
func (e *Engine) recordFailure(op *models.PendingOperation, cause error) error {
	op.RetryCount++
	op.LastError = cause.Error()
	if op.RetryCount >= e.maxRetries {
		op.Status = models.OperationStalled
		log.Errorf("sync: operation %d stalled after %d attempts: %v", op.ID, op.RetryCount, cause)
	}
	return e.store.SaveOperation(op)
}

// ingestDeltas pulls server-side changes since windowStart and applies them
// to the cache. Records with unsynced local changes become conflicts
// instead of being overwritten.
func (e *Engine) ingestDeltas(ctx context.Context, client API, userCtx *models.UserContext, windowStart time.Time, result *Result) error {
	syncState, err := e.store.SyncState()
	if err != nil {
		return fmt.Errorf("load sync state: %w", err)
	}

	var schoolID int64
	if userCtx.HasTenant() {
		schoolID = userCtx.SchoolID
	}

	delta, err := client.PullChanges(ctx, windowStart, schoolID, syncState)
	if err != nil {
		return err
	}

	if min := delta.Meta.MinClientVersion; min != "" && version.Compare(min) < 0 {
		return fmt.Errorf("%w: server requires >= %s, running %s", ErrClientTooOld, min, version.Short())
	}

	for kind, records := range delta.Changes {
		for _, raw := range records {
			rec, err := models.RecordFromJSON(raw)
			if err != nil {
				log.Errorf("sync: skipping malformed %s record: %v", kind, err)
				continue
			}
			if err := e.applyServerRecord(kind, rec, result); err != nil {
				return err
			}
		}
	}

	if delta.Meta.SyncState != "" {
		if err := e.store.SetSyncState(delta.Meta.SyncState); err != nil {
			return fmt.Errorf("persist sync state: %w", err)
		}
	}
	return nil
}

// applyServerRecord writes one pulled record into the cache, or records a
// conflict when the record also has unsynced local changes.
func (e *Engine) applyServerRecord(kind models.EntityKind, rec *models.EntityRecord, result *Result) error {
	dirty, err := e.store.HasOfflineChanges(kind, rec.ID)
	if err != nil {
		return fmt.Errorf("check offline changes: %w", err)
	}
	if !dirty {
		if err := e.store.Put(kind, rec); err != nil {
			return fmt.Errorf("cache %s %s: %w", kind, rec.ID, err)
		}
		result.Pulled++
		return nil
	}

	local, err := e.store.Get(kind, rec.ID)
	if err != nil {
		return fmt.Errorf("load local %s %s: %w", kind, rec.ID, err)
	}
	if local == nil || !rec.UpdatedAt.After(local.UpdatedAt) {
		// Local copy is current enough; the queued mutation will carry
		// the local state to the server.
		return nil
	}

	existing, err := e.store.ConflictsForObject(kind, rec.ID)
	if err != nil {
		return fmt.Errorf("check existing conflicts: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	return e.store.AddConflict(&models.Conflict{
		Kind:       kind,
		ObjectID:   rec.ID,
		ServerData: rec.Payload,
		LocalData:  local.Payload,
		DetectedAt: time.Now(),
	})
}

// resolveConflicts walks outstanding conflicts and applies registered
// policies. Resolution failures leave the conflict in place for the next
// pass; kinds without a policy are skipped entirely.
func (e *Engine) resolveConflicts(ctx context.Context, client API, result *Result) {
	conflicts, err := e.store.Conflicts()
	if err != nil {
		log.Errorf("sync: load conflicts: %v", err)
		return
	}

	for i := range conflicts {
		c := &conflicts[i]
		policy, ok := e.resolvers.PolicyFor(c.Kind)
		if !ok {
			continue
		}
		if err := e.Resolve(ctx, client, c, policy(c)); err != nil {
			log.Errorf("sync: resolve conflict %d (%s %s): %v", c.ID, c.Kind, c.ObjectID, err)
			continue
		}
		result.Resolved++
	}
}

// ResolveByID applies an explicit resolution decision to one stored
// conflict, for interactive resolution outside a sync pass.
func (e *Engine) ResolveByID(ctx context.Context, conflictID uint, decision Resolution) error {
	userCtx, err := e.store.UserContext()
	if err != nil {
		return fmt.Errorf("load user context: %w", err)
	}
	if userCtx == nil {
		return ErrNoCredentials
	}

	c, err := e.store.GetConflict(conflictID)
	if err != nil {
		return fmt.Errorf("load conflict: %w", err)
	}
	if c == nil {
		return fmt.Errorf("conflict %d not found", conflictID)
	}

	return e.Resolve(ctx, e.newClient(userCtx.Token), c, decision)
}

// Resolve applies one resolution decision to a conflict. The conflict is
// removed only after every side effect (cache write, server push) has
// completed; a failed push leaves it for the next pass.
func (e *Engine) Resolve(ctx context.Context, client API, c *models.Conflict, decision Resolution) error {
	switch decision {
	case ResolutionKeepServer:
		if len(c.ServerData) > 0 {
			rec, err := models.RecordFromJSON(c.ServerData)
			if err != nil {
				return fmt.Errorf("parse server snapshot: %w", err)
			}
			if err := e.store.Put(c.Kind, rec); err != nil {
				return fmt.Errorf("cache server snapshot: %w", err)
			}
		}
	case ResolutionKeepLocal:
		if _, err := client.UpdateRecord(ctx, c.Kind, c.ObjectID, c.LocalData); err != nil {
			return fmt.Errorf("push local snapshot: %w", err)
		}
	case ResolutionMerge:
		merged, err := MergeSnapshots(c.LocalData, c.ServerData, time.Now())
		if err != nil {
			return err
		}
		rec, err := models.RecordFromJSON(merged)
		if err != nil {
			return fmt.Errorf("parse merged record: %w", err)
		}
		if err := e.store.Put(c.Kind, rec); err != nil {
			return fmt.Errorf("cache merged record: %w", err)
		}
		if _, err := client.UpdateRecord(ctx, c.Kind, c.ObjectID, merged); err != nil {
			return fmt.Errorf("push merged record: %w", err)
		}
	default:
		return fmt.Errorf("unknown resolution %q", decision)
	}

	if err := e.store.RemoveOfflineChangesForObject(c.Kind, c.ObjectID); err != nil {
		return fmt.Errorf("clear offline changes: %w", err)
	}
	if c.OperationID != nil {
		if err := e.store.RemoveOperation(*c.OperationID); err != nil {
			return fmt.Errorf("remove conflicted operation: %w", err)
		}
	}
	return e.store.RemoveConflict(c.ID)
}

// objectIDFromPayload pulls the record id out of an operation payload.
func objectIDFromPayload(payload json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	id, err := models.StringID(fields["id"])
	if err != nil {
		return ""
	}
	return id
}
