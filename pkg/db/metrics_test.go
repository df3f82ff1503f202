package db

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "ranked_items")

	ch := make(chan *prometheus.Desc, 10)
	collector.Describe(ch)
	close(ch)

	var descs []string
	for d := range ch {
		descs = append(descs, d.String())
	}
	require.Len(t, descs, 4)
	assert.Contains(t, descs[0], "skyfeed_db_pool_total_conns")
	assert.Contains(t, descs[3], "skyfeed_db_pool_max_conns")
}

func TestPoolStatsCollector_NilPoolCollectsNothing(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "feed_entries")
	assert.Equal(t, 0, testutil.CollectAndCount(collector))
}

func TestRegisterPoolStats_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := RegisterPoolStats(reg, nil, "ranked_items")
	require.NoError(t, err)
	_, err = RegisterPoolStats(reg, nil, "ranked_items")
	assert.NoError(t, err, "re-registering the same store is tolerated")
}

func TestPoolStatsCollector_Live(t *testing.T) {
	pool := testPool(t)
	collector := NewPoolStatsCollector(pool, "ranked_items")
	assert.Equal(t, 4, testutil.CollectAndCount(collector))
}
