package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	val, err := rdb.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis("127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
