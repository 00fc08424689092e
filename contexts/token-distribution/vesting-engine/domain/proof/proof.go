package proof

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Domain-separation prefixes keep leaf and interior hashes from colliding.
const (
	leafPrefix = "tranche:leaf:v1\x00"
	nodePrefix = "tranche:node:v1\x00"
)

// LeafHash computes the commitment leaf for a (recipient, allocation) pair
// using a fixed, order-sensitive encoding.
func LeafHash(recipient string, allocation uint64) [32]byte {
	var buf bytes.Buffer
	buf.WriteString(leafPrefix)
	buf.WriteString(recipient)
	buf.WriteByte(0)
	var amount [8]byte
	binary.BigEndian.PutUint64(amount[:], allocation)
	buf.Write(amount[:])
	return sha256.Sum256(buf.Bytes())
}

// Verify walks the sibling path from the (recipient, allocation) leaf and
// reports whether it reproduces root. Each step combines the running hash
// with its sibling smaller-first, so proofs carry no side markers.
// A well-formed but non-matching proof returns false, never an error.
func Verify(root [32]byte, recipient string, allocation uint64, siblings [][32]byte) bool {
	current := LeafHash(recipient, allocation)
	for _, sibling := range siblings {
		current = nodeHash(current, sibling)
	}
	return current == root
}

func nodeHash(a, b [32]byte) [32]byte {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	var buf bytes.Buffer
	buf.WriteString(nodePrefix)
	buf.Write(a[:])
	buf.Write(b[:])
	return sha256.Sum256(buf.Bytes())
}
