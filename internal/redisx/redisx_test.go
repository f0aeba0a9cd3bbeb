package redisx

import (
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestClient_Get(t *testing.T) {
	t.Run("Hit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "cache:shop:1")).
			Return(mock.Result(mock.RedisString("hello")))

		c := Wrap(m)
		val, err := c.Get(t.Context(), "cache:shop:1")
		require.NoError(t, err)
		assert.Equal(t, "hello", val)
	})

	t.Run("Missing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "cache:shop:404")).
			Return(mock.Result(mock.RedisNil()))

		c := Wrap(m)
		_, err := c.Get(t.Context(), "cache:shop:404")
		require.Error(t, err)
		assert.True(t, IsNil(err))
	})
}

func TestClient_Set(t *testing.T) {
	t.Run("WithTTL", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("SET", "k", "v", "PX", "60000")).
			Return(mock.Result(mock.RedisString("OK")))

		c := Wrap(m)
		require.NoError(t, c.Set(t.Context(), "k", "v", time.Minute))
	})

	t.Run("WithoutTTL", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("SET", "k", "v")).
			Return(mock.Result(mock.RedisString("OK")))

		c := Wrap(m)
		require.NoError(t, c.Set(t.Context(), "k", "v", 0))
	})
}

func TestClient_SetNX(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("SET", "lock:a", "tok", "NX", "PX", "5000")).
			Return(mock.Result(mock.RedisString("OK")))

		c := Wrap(m)
		ok, err := c.SetNX(t.Context(), "lock:a", "tok", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AlreadyHeld", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("SET", "lock:a", "tok", "NX", "PX", "5000")).
			Return(mock.Result(mock.RedisNil()))

		c := Wrap(m)
		ok, err := c.SetNX(t.Context(), "lock:a", "tok", 5*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClient_Incr(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mock.NewClient(ctrl)
	m.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "incr:order:20250101")).
		Return(mock.Result(mock.RedisInt64(42)))

	c := Wrap(m)
	n, err := c.Incr(t.Context(), "incr:order:20250101")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestClient_HGetAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mock.NewClient(ctrl)
	m.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "login:token:t1")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("id"), mock.RedisString("7"),
			mock.RedisString("nickName"), mock.RedisString("u"),
		)))

	c := Wrap(m)
	fields, err := c.HGetAll(t.Context(), "login:token:t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "7", "nickName": "u"}, fields)
}

func TestClient_XGroupCreate(t *testing.T) {
	t.Run("Creates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("XGROUP", "CREATE", "stream.orders", "g1", "0", "MKSTREAM")).
			Return(mock.Result(mock.RedisString("OK")))

		c := Wrap(m)
		require.NoError(t, c.XGroupCreate(t.Context(), "stream.orders", "g1"))
	})

	t.Run("ExistingGroupTolerated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match("XGROUP", "CREATE", "stream.orders", "g1", "0", "MKSTREAM")).
			Return(mock.Result(mock.RedisError("BUSYGROUP Consumer Group name already exists")))

		c := Wrap(m)
		require.NoError(t, c.XGroupCreate(t.Context(), "stream.orders", "g1"))
	})
}

func TestClient_XReadGroup(t *testing.T) {
	t.Run("EmptyRead", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match(
				"XREADGROUP", "GROUP", "g1", "c1", "COUNT", "1", "BLOCK", "2000",
				"STREAMS", "stream.orders", ">",
			)).
			Return(mock.Result(mock.RedisNil()))

		c := Wrap(m)
		entries, err := c.XReadGroup(t.Context(), "g1", "c1", "stream.orders", ">", 1, 2*time.Second)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("PendingReadOmitsBlock", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := mock.NewClient(ctrl)
		m.EXPECT().
			Do(gomock.Any(), mock.Match(
				"XREADGROUP", "GROUP", "g1", "c1", "COUNT", "1",
				"STREAMS", "stream.orders", "0",
			)).
			Return(mock.Result(mock.RedisNil()))

		c := Wrap(m)
		entries, err := c.XReadGroup(t.Context(), "g1", "c1", "stream.orders", "0", 1, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestClient_XAck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mock.NewClient(ctrl)
	m.EXPECT().
		Do(gomock.Any(), mock.Match("XACK", "stream.orders", "g1", "1-1")).
		Return(mock.Result(mock.RedisInt64(1)))

	c := Wrap(m)
	require.NoError(t, c.XAck(t.Context(), "stream.orders", "g1", "1-1"))
}
