package jobs

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/metrics"
)

// Op describes what kind of mutation produced a Change.
type Op string

const (
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
	// OpReset follows a bulk Reconcile; listeners should re-read List.
	OpReset Op = "reset"
)

// Change is delivered to subscribers after every mutation. For OpRemove, Job
// is the last known state of the removed job.
type Change struct {
	Op  Op
	Job domain.Job
}

// Listener observes registry mutations.
type Listener func(Change)

// EditToken identifies one optimistic edit until it is confirmed or rolled
// back.
type EditToken uint64

type fieldEdit struct {
	token EditToken
	// base is the latest server-known value of the field.
	base domain.Job
	// confirmed edits stay overlaid until a pushed row echoes the value or a
	// newer row supersedes it.
	confirmed   bool
	confirmedAt time.Time
}

type entry struct {
	job         domain.Job
	pending     map[domain.Field]*fieldEdit
	provisional bool
	// version is the registry version of the entry's last write.
	version uint64
}

type editRecord struct {
	jobID  uuid.UUID
	fields []domain.Field
}

// Registry holds the jobs of one parent resource. It is safe for concurrent
// use; listeners are invoked outside the registry lock.
type Registry struct {
	parentID uuid.UUID
	logger   *slog.Logger

	mu         sync.Mutex
	entries    map[uuid.UUID]*entry
	tombstones map[uuid.UUID]struct{}
	edits      map[EditToken]editRecord
	nextToken  EditToken
	listeners  map[int]Listener
	nextID     int
	version    uint64
	closed     bool
}

// NewRegistry creates an empty registry for parentID.
func NewRegistry(parentID uuid.UUID, logger *slog.Logger) *Registry {
	return &Registry{
		parentID:   parentID,
		logger:     logger.With("component", "job_registry", "parent_id", parentID),
		entries:    make(map[uuid.UUID]*entry),
		tombstones: make(map[uuid.UUID]struct{}),
		edits:      make(map[EditToken]editRecord),
		listeners:  make(map[int]Listener),
	}
}

// ParentID returns the parent resource the registry belongs to.
func (r *Registry) ParentID() uuid.UUID { return r.parentID }

// Subscribe registers fn for every subsequent mutation.
func (r *Registry) Subscribe(fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// Version returns a counter that advances on every write to a job. Callers
// capture it before fetching a listing and pass it to Reconcile.
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Get returns a copy of the job with id.
func (r *Registry) Get(id uuid.UUID) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Job{}, false
	}
	return e.job.Clone(), true
}

// List returns all jobs, most recent first. Ties are broken by id so the
// order is stable.
func (r *Registry) List() []domain.Job {
	r.mu.Lock()
	out := make([]domain.Job, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.job.Clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Upsert merges a pushed or fetched row. Unknown ids are inserted; known ids
// are replaced, except that status regressions are discarded, CreatedAt is
// kept, and fields with pending optimistic edits keep their local value. It
// reports whether the row was applied.
func (r *Registry) Upsert(job domain.Job) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	merged, ok := r.mergeLocked(job)
	if !ok {
		r.mu.Unlock()
		return false
	}
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: merged})
	return true
}

func (r *Registry) mergeLocked(job domain.Job) (domain.Job, bool) {
	if job.ParentID != r.parentID {
		r.logger.Debug("ignoring job of another parent", "job_id", job.ID, "job_parent_id", job.ParentID)
		return domain.Job{}, false
	}
	if _, dead := r.tombstones[job.ID]; dead {
		r.logger.Debug("ignoring event for deleted job", "job_id", job.ID)
		return domain.Job{}, false
	}

	incoming := job.Clone()
	e, exists := r.entries[job.ID]
	if !exists {
		e = &entry{job: incoming}
		r.entries[job.ID] = e
		r.touchLocked(e)
		return incoming.Clone(), true
	}

	if !domain.CanTransition(e.job.Status, incoming.Status) {
		r.logger.Warn("discarding stale job event",
			"job_id", job.ID,
			"current_status", e.job.Status,
			"event_status", incoming.Status)
		metrics.IncStaleEvent()
		return domain.Job{}, false
	}

	incoming.CreatedAt = e.job.CreatedAt
	// Pushed rows may omit the quiz payload; keep what we already have.
	if incoming.Kind == domain.JobKindQuiz && len(incoming.Questions) == 0 && len(e.job.Questions) > 0 {
		incoming.Questions = e.job.Clone().Questions
	}

	for f, fe := range e.pending {
		if fe.confirmed {
			if domain.FieldEqual(incoming, e.job, f) || incoming.UpdatedAt.After(fe.confirmedAt) {
				delete(e.pending, f)
				continue
			}
		} else {
			domain.CopyField(&fe.base, incoming, f)
		}
		domain.CopyField(&incoming, e.job, f)
	}

	e.job = incoming
	e.provisional = false
	r.touchLocked(e)
	return incoming.Clone(), true
}

// Reconcile merges a full authoritative listing, as fetched after
// (re)subscribing. since is the Version captured before the listing was
// requested. Jobs missing from rows are removed unless they are provisional
// records the server has not acknowledged yet or were written after since,
// such as rows pushed while the listing was in flight.
func (r *Registry) Reconcile(rows []domain.Job, since uint64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if row.ParentID != r.parentID {
			continue
		}
		seen[row.ID] = struct{}{}
		r.mergeLocked(row)
	}

	for id, e := range r.entries {
		if _, ok := seen[id]; ok || e.provisional || e.version > since {
			continue
		}
		r.logger.Debug("removing job missing from listing", "job_id", id)
		r.dropLocked(id)
	}

	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpReset})
}

// Remove deletes a job and tombstones its id. Removing an unknown id still
// records the tombstone so a late insert event is ignored.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.tombstones[id] = struct{}{}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	last := e.job.Clone()
	r.dropLocked(id)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpRemove, Job: last})
	return true
}

// Restore undoes an optimistic Remove, reinserting the given snapshot and
// clearing the tombstone.
func (r *Registry) Restore(job domain.Job) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if job.ParentID != r.parentID {
		r.mu.Unlock()
		return ErrWrongParent
	}
	delete(r.tombstones, job.ID)
	restored := job.Clone()
	e := &entry{job: restored}
	r.entries[job.ID] = e
	r.touchLocked(e)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: restored.Clone()})
	return nil
}

// Patch applies an authoritative partial update, such as a refreshed audio
// URL. Pending optimistic edits of the touched fields are discarded.
func (r *Registry) Patch(id uuid.UUID, patch domain.JobPatch) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	patch.Apply(&e.job)
	for _, f := range patch.Fields() {
		delete(e.pending, f)
	}
	r.touchLocked(e)
	updated := e.job.Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: updated})
	return nil
}

// InsertProvisional records a job ahead of its submission. The job must be
// generating and unknown to the registry.
func (r *Registry) InsertProvisional(job domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.Status != domain.JobStatusGenerating {
		return fmt.Errorf("%w: provisional job must be generating", domain.ErrInvalidTransition)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if job.ParentID != r.parentID {
		r.mu.Unlock()
		return ErrWrongParent
	}
	if _, ok := r.entries[job.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	inserted := job.Clone()
	e := &entry{job: inserted, provisional: true}
	r.entries[job.ID] = e
	r.touchLocked(e)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: inserted.Clone()})
	return nil
}

// MarkFailed moves a generating job to failed with reason. Jobs already in a
// terminal state are left alone.
func (r *Registry) MarkFailed(id uuid.UUID, reason string, now time.Time) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if e.job.Status != domain.JobStatusGenerating {
		r.mu.Unlock()
		return nil
	}
	if err := e.job.Transition(domain.JobStatusFailed, now); err != nil {
		r.mu.Unlock()
		return err
	}
	e.job.Error = reason
	r.touchLocked(e)
	updated := e.job.Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: updated})
	return nil
}

// Rekey moves a provisional job to the id assigned by the server. If a row
// with newID already arrived, the provisional record is simply dropped.
func (r *Registry) Rekey(oldID, newID uuid.UUID) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	e, ok := r.entries[oldID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, oldID)
	}
	delete(r.entries, oldID)
	var change Change
	if existing, ok := r.entries[newID]; ok {
		change = Change{Op: OpUpsert, Job: existing.job.Clone()}
	} else {
		e.job.ID = newID
		r.entries[newID] = e
		change = Change{Op: OpUpsert, Job: e.job.Clone()}
	}
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpRemove, Job: domain.Job{ID: oldID, ParentID: r.parentID}})
	r.emit(listeners, change)
	return nil
}

// IsProvisional reports whether the job has not yet been seen from the server.
func (r *Registry) IsProvisional(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && e.provisional
}

// Close drops all listeners. Every later write is a no-op.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.listeners = make(map[int]Listener)
}

func (r *Registry) touchLocked(e *entry) {
	r.version++
	e.version = r.version
}

func (r *Registry) dropLocked(id uuid.UUID) {
	delete(r.entries, id)
	for token, rec := range r.edits {
		if rec.jobID == id {
			delete(r.edits, token)
		}
	}
}

func (r *Registry) listenersLocked() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		out = append(out, fn)
	}
	return out
}

func (r *Registry) emit(listeners []Listener, c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}
