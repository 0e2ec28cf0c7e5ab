package execution

import "fmt"

// keyMaxValue is the largest partition or dependency id that fits in one
// 16-bit half of a packed key. 2^16 - 1.
const keyMaxValue = 65535

// depKey packs a partition id (low 16 bits) and a dependency id (high 16
// bits) into a single value that is cheap to hash and compare.
type depKey uint32

// makeDepKey packs the pair, rejecting ids that would overflow their 16-bit
// field and silently corrupt another entry's bits.
func makeDepKey(partitionID, dependencyID int) (depKey, error) {
	if partitionID < 0 || partitionID > keyMaxValue {
		return 0, fmt.Errorf("partition id %d outside the 16-bit key range [0, %d]", partitionID, keyMaxValue)
	}
	if dependencyID < 0 || dependencyID > keyMaxValue {
		return 0, fmt.Errorf("dependency id %d outside the 16-bit key range [0, %d]", dependencyID, keyMaxValue)
	}
	return depKey(uint32(partitionID) | uint32(dependencyID)<<16), nil
}

func (k depKey) partitionID() int  { return int(uint32(k) & keyMaxValue) }
func (k depKey) dependencyID() int { return int(uint32(k) >> 16 & keyMaxValue) }

// depKeyRegistry is the insertion-ordered set of distinct (partition,
// dependency) keys seen in the current round. Each key gets a stable
// small-integer index (its insertion position) that doubles as the selector
// for the per-key statement-routing queues. Lookup is O(1) in both
// directions.
type depKeyRegistry struct {
	keys    []depKey       // index -> key, in first-seen order
	indexes map[depKey]int // key -> index
}

func newDepKeyRegistry() *depKeyRegistry {
	return &depKeyRegistry{indexes: make(map[depKey]int)}
}

// encode registers the (partition, dependency) pair if it is new and returns
// its stable index. Encoding the same pair twice in one round returns the
// same index.
func (r *depKeyRegistry) encode(partitionID, dependencyID int) (int, error) {
	key, err := makeDepKey(partitionID, dependencyID)
	if err != nil {
		return 0, err
	}
	if idx, ok := r.indexes[key]; ok {
		return idx, nil
	}
	idx := len(r.keys)
	r.keys = append(r.keys, key)
	r.indexes[key] = idx
	return idx, nil
}

// lookup returns the index for a pair without inserting it.
func (r *depKeyRegistry) lookup(partitionID, dependencyID int) (int, bool) {
	key, err := makeDepKey(partitionID, dependencyID)
	if err != nil {
		return 0, false
	}
	idx, ok := r.indexes[key]
	return idx, ok
}

// decode returns the (partition, dependency) pair registered at index.
func (r *depKeyRegistry) decode(index int) (partitionID, dependencyID int, err error) {
	if index < 0 || index >= len(r.keys) {
		return 0, 0, fmt.Errorf("no partition/dependency key registered at index %d", index)
	}
	key := r.keys[index]
	return key.partitionID(), key.dependencyID(), nil
}

func (r *depKeyRegistry) size() int {
	return len(r.keys)
}

// reset drops every key; called when a round is cleared.
func (r *depKeyRegistry) reset() {
	r.keys = r.keys[:0]
	for k := range r.indexes {
		delete(r.indexes, k)
	}
}
