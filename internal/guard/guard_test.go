package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/gpm/internal/types"
)

func TestAcquireRejectsSecondHolder(t *testing.T) {
	locks := NewEntityLocks()

	release, err := locks.Acquire("pool", "7")
	require.NoError(t, err)
	require.True(t, locks.Held("pool", "7"))

	_, err = locks.Acquire("pool", "7")
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrReentrancy))

	release()
	require.False(t, locks.Held("pool", "7"))

	release2, err := locks.Acquire("pool", "7")
	require.NoError(t, err)
	release2()
}

func TestLocksArePerEntity(t *testing.T) {
	locks := NewEntityLocks()

	release, err := locks.Acquire("pool", "7")
	require.NoError(t, err)
	defer release()

	// A different pool, and a different kind with the same id, stay available.
	release8, err := locks.Acquire("pool", "8")
	require.NoError(t, err)
	release8()

	releasePos, err := locks.Acquire("position", "7")
	require.NoError(t, err)
	releasePos()
}
