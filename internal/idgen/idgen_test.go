package idgen

import (
	"context"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flashmart/seckill/internal/redisx"
)

func TestCompose(t *testing.T) {
	t.Run("Layout", func(t *testing.T) {
		id := compose(epoch+1, 5)
		assert.Equal(t, int64(1)<<sequenceBits|5, id)
	})

	t.Run("TimestampDominates", func(t *testing.T) {
		// A later second always outranks any sequence from an earlier one.
		earlier := compose(epoch+10, 1<<30)
		later := compose(epoch+11, 1)
		assert.Greater(t, later, earlier)
	})

	t.Run("SequenceOrdersWithinSecond", func(t *testing.T) {
		a := compose(epoch+10, 1)
		b := compose(epoch+10, 2)
		assert.Greater(t, b, a)
	})
}

func TestCounterKey(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "incr:order:20250615", counterKey("order", now))
}

func TestGenerator_NextID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	m := mock.NewClient(ctrl)
	m.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "incr:order:20250615")).
		Return(mock.Result(mock.RedisInt64(7)))

	g := New(redisx.Wrap(m))
	g.now = func() time.Time { return now }

	id, err := g.NextID(t.Context(), "order")
	require.NoError(t, err)
	assert.Equal(t, compose(now.Unix(), 7), id)
}

func TestGenerator_NextID_Sequential(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	var seq int64
	m := mock.NewClient(ctrl)
	m.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "incr:order:20250615")).
		DoAndReturn(func(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
			seq++
			return mock.Result(mock.RedisInt64(seq))
		}).
		Times(3)

	g := New(redisx.Wrap(m))
	g.now = func() time.Time { return now }

	var prev int64
	for i := 0; i < 3; i++ {
		id, err := g.NextID(t.Context(), "order")
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}
