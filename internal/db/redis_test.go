package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/leadsite/internal/config"
)

func TestNewRedisClientWithoutAddr(t *testing.T) {
	rdb, err := NewRedisClient(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestEmptyDSNs(t *testing.T) {
	_, err := NewMySQLConnection(config.DatabaseConfig{})
	assert.Error(t, err)
	_, err = NewClickHouseConnection(config.DatabaseConfig{})
	assert.Error(t, err)
}
