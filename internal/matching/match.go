package matching

// Pair holds one matched entity from each side.
type Pair[T any] struct {
	Left  T
	Right T
}

// Diff is the result of matching two entity sequences: positionally paired
// entities that share a key, plus the unmatched remainder of each side.
type Diff[T any] struct {
	Matched   []Pair[T]
	LeftOnly  []T
	RightOnly []T
}

// Match buckets both sequences by comparison key and pairs entities within
// each shared bucket positionally, first with first, up to the smaller bucket
// size. Surplus entities land in LeftOnly or RightOnly. Entities whose key is
// empty never match; they go straight to the unmatched side.
//
// Matched pairs appear in the order their key was first seen on the left.
// Within a bucket the original relative order of each side is preserved.
// Ties inside a bucket are broken purely by position, never by scoring.
func Match[T any](left, right []T, leftKey, rightKey func(T) string) Diff[T] {
	leftOrder, leftBuckets := bucket(left, leftKey)
	rightOrder, rightBuckets := bucket(right, rightKey)

	var diff Diff[T]

	for _, key := range leftOrder {
		leftEntities := leftBuckets[key]
		rightEntities := rightBuckets[key]

		if key == "" || len(rightEntities) == 0 {
			diff.LeftOnly = append(diff.LeftOnly, leftEntities...)
			continue
		}

		n := min(len(leftEntities), len(rightEntities))
		for i := 0; i < n; i++ {
			diff.Matched = append(diff.Matched, Pair[T]{Left: leftEntities[i], Right: rightEntities[i]})
		}

		if len(leftEntities) > n {
			diff.LeftOnly = append(diff.LeftOnly, leftEntities[n:]...)
		}
		rightBuckets[key] = rightEntities[n:]
	}

	for _, key := range rightOrder {
		diff.RightOnly = append(diff.RightOnly, rightBuckets[key]...)
	}

	return diff
}

// bucket groups entities by key, recording the order in which keys first appear.
func bucket[T any](entities []T, keyFn func(T) string) ([]string, map[string][]T) {
	order := make([]string, 0, len(entities))
	buckets := make(map[string][]T, len(entities))
	for _, entity := range entities {
		key := keyFn(entity)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], entity)
	}
	return order, buckets
}
