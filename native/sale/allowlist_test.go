package sale

import (
	"fmt"
	"testing"
)

func testAddresses(n int) []Address {
	addrs := make([]Address, n)
	for i := range addrs {
		addrs[i] = newTestAddress(byte(i + 1))
	}
	return addrs
}

func TestAllowListTreeProofsVerify(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("size-%d", size), func(t *testing.T) {
			addrs := testAddresses(size)
			tree := NewAllowListTree(addrs)
			root := tree.Root()
			if root == ([32]byte{}) {
				t.Fatal("non-empty tree produced zero root")
			}
			for _, addr := range addrs {
				proof, ok := tree.Proof(addr)
				if !ok {
					t.Fatalf("missing proof for %x", addr)
				}
				if !VerifyAllowListProof(root, addr, proof) {
					t.Fatalf("proof for %x does not verify", addr)
				}
			}
		})
	}
}

func TestAllowListTreeRejectsNonMembers(t *testing.T) {
	addrs := testAddresses(4)
	tree := NewAllowListTree(addrs)
	root := tree.Root()

	outsider := newTestAddress(0xFF)
	if _, ok := tree.Proof(outsider); ok {
		t.Fatal("tree produced proof for non-member")
	}

	// A member's proof does not verify for anyone else.
	proof, _ := tree.Proof(addrs[0])
	if VerifyAllowListProof(root, outsider, proof) {
		t.Fatal("stolen proof verified for outsider")
	}

	// Tampered proofs fail.
	if len(proof) > 0 {
		tampered := make([][32]byte, len(proof))
		copy(tampered, proof)
		tampered[0][0] ^= 0x01
		if VerifyAllowListProof(root, addrs[0], tampered) {
			t.Fatal("tampered proof verified")
		}
	}
}

func TestAllowListSingleLeafAcceptsEmptyProof(t *testing.T) {
	member := newTestAddress(0x01)
	tree := NewAllowListTree([]Address{member})
	if tree.Root() != leafHash(member) {
		t.Fatal("single-leaf root is not the leaf hash")
	}
	if !VerifyAllowListProof(tree.Root(), member, nil) {
		t.Fatal("single-leaf empty proof rejected")
	}
}

func TestAllowListZeroRootAdmitsNobody(t *testing.T) {
	member := newTestAddress(0x01)
	if VerifyAllowListProof([32]byte{}, member, nil) {
		t.Fatal("zero root admitted a purchase")
	}
}

func TestAllowListRootRotationInvalidatesOldProofs(t *testing.T) {
	oldSet := testAddresses(4)
	oldTree := NewAllowListTree(oldSet)
	oldProof, _ := oldTree.Proof(oldSet[0])

	newSet := append(testAddresses(3), newTestAddress(0x20))
	newTree := NewAllowListTree(newSet)
	newRoot := newTree.Root()

	if newRoot == oldTree.Root() {
		t.Fatal("distinct sets produced the same root")
	}
	if VerifyAllowListProof(newRoot, oldSet[0], oldProof) {
		t.Fatal("old proof verified against rotated root")
	}
}

func TestAllowListTreeDedupesAddresses(t *testing.T) {
	member := newTestAddress(0x01)
	tree := NewAllowListTree([]Address{member, member, newTestAddress(0x02)})
	if got := len(tree.Addresses()); got != 2 {
		t.Fatalf("deduped member count = %d, want 2", got)
	}
	proof, ok := tree.Proof(member)
	if !ok || !VerifyAllowListProof(tree.Root(), member, proof) {
		t.Fatal("deduped member proof does not verify")
	}
}
