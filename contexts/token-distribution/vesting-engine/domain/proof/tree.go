package proof

// Pair is one committed (recipient, allocation) membership.
type Pair struct {
	Recipient  string
	Allocation uint64
}

// Tree is a Merkle tree over a committed membership set. Admin tooling
// builds it to produce the schedule commitment root and per-recipient
// proofs; the engine itself only ever verifies.
type Tree struct {
	pairs  []Pair
	levels [][][32]byte
}

// BuildTree constructs the tree bottom-up. Odd levels duplicate their last
// node. A nil or empty pair set yields a zero root.
func BuildTree(pairs []Pair) *Tree {
	t := &Tree{pairs: append([]Pair(nil), pairs...)}
	if len(pairs) == 0 {
		return t
	}
	level := make([][32]byte, len(pairs))
	for i, pair := range pairs {
		level[i] = LeafHash(pair.Recipient, pair.Allocation)
	}
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = nodeHash(level[i], level[i+1])
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the commitment root, or the zero hash for an empty tree.
func (t *Tree) Root() [32]byte {
	if len(t.levels) == 0 {
		return [32]byte{}
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// ProofFor returns the sibling path for a committed pair, or false when the
// pair is not part of the set.
func (t *Tree) ProofFor(recipient string, allocation uint64) ([][32]byte, bool) {
	index := -1
	for i, pair := range t.pairs {
		if pair.Recipient == recipient && pair.Allocation == allocation {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}
	var siblings [][32]byte
	for _, level := range t.levels[:len(t.levels)-1] {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		sibling := index ^ 1
		siblings = append(siblings, level[sibling])
		index /= 2
	}
	return siblings, true
}
