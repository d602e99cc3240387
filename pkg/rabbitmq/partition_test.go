package rabbitmq

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionForIsDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("job-%d", i)
		assert.Equal(t, PartitionFor(key, 8), PartitionFor(key, 8))
	}
}

func TestPartitionForStaysInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		p := PartitionFor(fmt.Sprintf("job-%d", i), 8)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 8)
	}
}

func TestPartitionForSinglePartition(t *testing.T) {
	assert.Equal(t, 0, PartitionFor("anything", 1))
	assert.Equal(t, 0, PartitionFor("anything", 0))
}

func TestPartitionForSpreadsKeys(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[PartitionFor(fmt.Sprintf("job-%d", i), 8)] = true
	}
	assert.Len(t, seen, 8)
}

func TestPartitionQueueName(t *testing.T) {
	assert.Equal(t, "video.submitted.3", PartitionQueue("video.submitted", 3))
}

func TestAllPartitions(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, AllPartitions(3))
	assert.Equal(t, []int{0}, AllPartitions(0))
}
