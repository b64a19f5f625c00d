package sale

import (
	"bytes"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VerifyAllowListProof recomputes the Merkle root from keccak256(addr) and the
// supplied sibling path, hashing each pair in sorted order, and compares it to
// the committed root. A zero root admits nobody.
func VerifyAllowListProof(root [32]byte, addr Address, proof [][32]byte) bool {
	if root == ([32]byte{}) {
		return false
	}
	node := leafHash(addr)
	for _, sibling := range proof {
		node = pairHash(node, sibling)
	}
	return node == root
}

func leafHash(addr Address) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(addr[:]))
	return out
}

func pairHash(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}

// AllowListTree builds the sorted-pair Merkle tree over an address set and
// produces the root plus membership proofs. Odd nodes are promoted unpaired to
// the next layer, so a single-address tree accepts the empty proof.
type AllowListTree struct {
	layers [][][32]byte
	index  map[Address]int
}

// NewAllowListTree constructs the tree. Duplicate addresses keep their first
// position.
func NewAllowListTree(addrs []Address) *AllowListTree {
	tree := &AllowListTree{index: make(map[Address]int, len(addrs))}
	leaves := make([][32]byte, 0, len(addrs))
	for _, addr := range addrs {
		if _, seen := tree.index[addr]; seen {
			continue
		}
		tree.index[addr] = len(leaves)
		leaves = append(leaves, leafHash(addr))
	}
	if len(leaves) == 0 {
		return tree
	}
	tree.layers = append(tree.layers, leaves)
	for current := leaves; len(current) > 1; {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, pairHash(current[i], current[i+1]))
		}
		tree.layers = append(tree.layers, next)
		current = next
	}
	return tree
}

// Root returns the committed digest, zero for an empty address set.
func (t *AllowListTree) Root() [32]byte {
	if t == nil || len(t.layers) == 0 {
		return [32]byte{}
	}
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling path for an address, or false when the address is
// not part of the set.
func (t *AllowListTree) Proof(addr Address) ([][32]byte, bool) {
	if t == nil {
		return nil, false
	}
	pos, ok := t.index[addr]
	if !ok || len(t.layers) == 0 {
		return nil, false
	}
	proof := make([][32]byte, 0, len(t.layers))
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := pos ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		pos /= 2
	}
	return proof, true
}

// Addresses returns the member set in leaf order.
func (t *AllowListTree) Addresses() []Address {
	if t == nil {
		return nil
	}
	out := make([]Address, len(t.index))
	for addr, pos := range t.index {
		out[pos] = addr
	}
	return out
}

// SortAddresses orders addresses lexicographically. Manifest tooling uses it
// to keep roots reproducible across runs.
func SortAddresses(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
