package rabbitmq

import (
	"fmt"
	"hash/fnv"
)

// PartitionFor routes a message key to a partition. Same key, same
// partition: this is what keeps all events for one job on one ordered
// stream.
func PartitionFor(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

// PartitionQueue names the queue backing one partition of a topic.
func PartitionQueue(topic string, partition int) string {
	return fmt.Sprintf("%s.%d", topic, partition)
}

// AllPartitions enumerates 0..n-1.
func AllPartitions(n int) []int {
	if n < 1 {
		n = 1
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
