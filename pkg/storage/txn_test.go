package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
)

func TestTxnSaveCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	var txn Txn
	require.NoError(t, txn.Save(ctx, s, "k", "v1"))
	require.NoError(t, txn.Save(ctx, s, "k", "v2"))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestTxnRollbackRestoresPriors(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()
	require.NoError(t, s.Create(ctx, "existing", "old"))

	var txn Txn
	require.NoError(t, txn.Save(ctx, s, "existing", "new"))
	require.NoError(t, txn.Save(ctx, s, "created", "value"))

	require.NoError(t, txn.Rollback(ctx))

	v, err := s.Get(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	_, err = s.Get(ctx, "created")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestTxnRollbackAcrossStores(t *testing.T) {
	ctx := context.Background()
	s1 := NewInMemoryStorage()
	s2 := NewInMemoryStorage()
	require.NoError(t, s1.Create(ctx, "k", 1))

	var txn Txn
	require.NoError(t, txn.Save(ctx, s1, "k", 2))
	require.NoError(t, txn.Save(ctx, s2, "k", 3))

	require.NoError(t, txn.Rollback(ctx))

	v, err := s1.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = s2.Get(ctx, "k")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestTxnRollbackOverwrittenKey(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	// Same key saved twice inside one txn: rollback replays priors newest
	// first, ending with the key removed.
	var txn Txn
	require.NoError(t, txn.Save(ctx, s, "k", "v1"))
	require.NoError(t, txn.Save(ctx, s, "k", "v2"))

	require.NoError(t, txn.Rollback(ctx))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestTxnRollbackEmpty(t *testing.T) {
	var txn Txn
	assert.NoError(t, txn.Rollback(context.Background()))
}
