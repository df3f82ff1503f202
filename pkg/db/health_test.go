package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPing_NilPool(t *testing.T) {
	err := Ping(context.Background(), nil)
	assert.EqualError(t, err, "pool is nil")
}

func TestCheck_NilPool(t *testing.T) {
	status := Check(context.Background(), nil)
	assert.False(t, status.Healthy)
	assert.Equal(t, "pool is nil", status.Error)
}

func TestCheck_Live(t *testing.T) {
	pool := testPool(t)

	status := Check(context.Background(), pool)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Error)
	assert.Positive(t, status.TotalConns)
}
