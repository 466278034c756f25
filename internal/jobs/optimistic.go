package jobs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// ApplyOptimistic applies a user edit locally before the server confirms it.
// The returned token must later be passed to ConfirmEdit or RollbackEdit.
func (r *Registry) ApplyOptimistic(id uuid.UUID, patch domain.JobPatch) (EditToken, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return 0, ErrEmptyPatch
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrRegistryClosed
	}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	r.nextToken++
	token := r.nextToken
	if e.pending == nil {
		e.pending = make(map[domain.Field]*fieldEdit)
	}
	for _, f := range fields {
		fe, ok := e.pending[f]
		if !ok || fe.confirmed {
			fe = &fieldEdit{base: e.job.Clone()}
			e.pending[f] = fe
		}
		fe.token = token
	}
	patch.Apply(&e.job)
	r.edits[token] = editRecord{jobID: id, fields: fields}

	updated := e.job.Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: updated})
	return token, nil
}

// ConfirmEdit resolves an optimistic edit with the server's response, which
// is authoritative for the fields the edit touched. Fields since claimed by a
// newer edit keep their local value.
func (r *Registry) ConfirmEdit(token EditToken, response domain.Job) error {
	r.mu.Lock()
	rec, ok := r.edits[token]
	if !ok || r.closed {
		r.mu.Unlock()
		return ErrUnknownEdit
	}
	delete(r.edits, token)
	e, ok := r.entries[rec.jobID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownEdit
	}

	for _, f := range rec.fields {
		fe, pending := e.pending[f]
		switch {
		case !pending:
			domain.CopyField(&e.job, response, f)
		case fe.token == token:
			domain.CopyField(&e.job, response, f)
			fe.confirmed = true
			fe.confirmedAt = response.UpdatedAt
		default:
			domain.CopyField(&fe.base, response, f)
		}
	}

	updated := e.job.Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: updated})
	return nil
}

// RollbackEdit reverts the fields an edit still owns to their latest
// server-known value.
func (r *Registry) RollbackEdit(token EditToken) error {
	r.mu.Lock()
	rec, ok := r.edits[token]
	if !ok || r.closed {
		r.mu.Unlock()
		return ErrUnknownEdit
	}
	delete(r.edits, token)
	e, ok := r.entries[rec.jobID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownEdit
	}

	for _, f := range rec.fields {
		fe, pending := e.pending[f]
		if !pending || fe.token != token {
			continue
		}
		domain.CopyField(&e.job, fe.base, f)
		delete(e.pending, f)
	}

	updated := e.job.Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.emit(listeners, Change{Op: OpUpsert, Job: updated})
	return nil
}

// PendingFields lists the fields of a job with unresolved optimistic edits.
func (r *Registry) PendingFields(id uuid.UUID) []domain.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	var out []domain.Field
	for f, fe := range e.pending {
		if !fe.confirmed {
			out = append(out, f)
		}
	}
	return out
}
