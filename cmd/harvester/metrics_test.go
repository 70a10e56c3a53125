package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricDefsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range metricDefs() {
		require.False(t, seen[d.PromName], d.PromName)
		seen[d.PromName] = true
		require.Equal(t, "counter", d.Type)
	}
	require.True(t, seen["harvester_items_done_total"])
}
