package storage

import (
	"context"
	"errors"

	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
)

// Txn is a write set giving a multi-store mutation all-or-nothing semantics.
// Every Save records the key's prior state; Rollback restores priors in
// reverse order. The coordinator applies its internal state through a Txn
// first, then performs external ledger calls, and rolls the Txn back when a
// call fails.
type Txn struct {
	applied []appliedOp
}

type appliedOp struct {
	store   Storage
	key     string
	prior   interface{}
	existed bool
}

// Save upserts value under key and records the prior state for rollback.
func (t *Txn) Save(ctx context.Context, store Storage, key string, value interface{}) error {
	prior, err := store.Get(ctx, key)
	existed := err == nil
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}

	if existed {
		err = store.Update(ctx, key, value)
	} else {
		err = store.Create(ctx, key, value)
	}
	if err != nil {
		return err
	}

	t.applied = append(t.applied, appliedOp{
		store:   store,
		key:     key,
		prior:   prior,
		existed: existed,
	})

	return nil
}

// Rollback undoes every applied write, newest first. Errors during rollback
// are joined and returned; callers treat them as storage corruption.
func (t *Txn) Rollback(ctx context.Context) error {
	var errs error
	for i := len(t.applied) - 1; i >= 0; i-- {
		op := t.applied[i]
		var err error
		if op.existed {
			err = op.store.Update(ctx, op.key, op.prior)
		} else {
			err = op.store.Delete(ctx, op.key)
		}
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}
	t.applied = nil

	return errs
}
