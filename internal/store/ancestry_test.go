package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAncestry(t *testing.T) {
	tenant := uuid.Must(uuid.NewV7())
	unit := uuid.Must(uuid.NewV7())
	partner := uuid.Must(uuid.NewV7())
	other := uuid.Must(uuid.NewV7())

	a := Ancestry{
		unit:    tenant,
		partner: unit,
	}

	t.Run("path walks to root", func(t *testing.T) {
		path, err := a.Path(partner)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{partner, unit, tenant}, path)
	})

	t.Run("root of root is itself", func(t *testing.T) {
		root, err := a.Root(tenant)
		require.NoError(t, err)
		require.Equal(t, tenant, root)
	})

	t.Run("is within", func(t *testing.T) {
		ok, err := a.IsWithin(partner, tenant)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = a.IsWithin(other, tenant)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = a.IsWithin(tenant, unit)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("descendants", func(t *testing.T) {
		require.ElementsMatch(t, []uuid.UUID{tenant, unit, partner}, a.Descendants(tenant))
		require.Equal(t, []uuid.UUID{other}, a.Descendants(other))
	})

	t.Run("cycle is reported", func(t *testing.T) {
		x := uuid.Must(uuid.NewV7())
		y := uuid.Must(uuid.NewV7())
		cyclic := Ancestry{x: y, y: x}

		_, err := cyclic.Root(x)
		require.ErrorIs(t, err, ErrOrganizationCycle)

		require.ElementsMatch(t, []uuid.UUID{x, y}, cyclic.Descendants(x))
	})
}
