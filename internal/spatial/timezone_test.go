package spatial

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTZFResolver(t *testing.T) {
	resolver, err := NewTZFResolver(100)
	require.NoError(t, err)

	t.Run("tampa", func(t *testing.T) {
		loc, err := resolver.Resolve(28.0587, -82.4139)
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", loc.String())

		// second lookup is served from the cache
		again, err := resolver.Resolve(28.0587, -82.4139)
		require.NoError(t, err)
		assert.Same(t, loc, again)
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		_, err := resolver.Resolve(123, 0)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	})
}

func TestFixedResolver(t *testing.T) {
	utc := FixedResolver{Location: time.UTC}
	loc, err := utc.Resolve(10, 10)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = FixedResolver{}.Resolve(10, 10)
	assert.ErrorIs(t, err, ErrUnresolvableTimezone)
}
