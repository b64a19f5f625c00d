package token

import (
	"errors"
	"testing"

	"mintgate/native/sale"
)

func addr(fill byte) sale.Address {
	var a sale.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestCollectionSequentialSerials(t *testing.T) {
	c := NewCollection()
	alice := addr(0x01)
	bob := addr(0x02)

	if err := c.Mint(alice, sale.SingleToken{}, 3); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := c.Mint(bob, sale.SingleToken{}, 2); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if c.TotalSupply() != 5 {
		t.Fatalf("supply = %d, want 5", c.TotalSupply())
	}
	if c.BalanceOf(alice) != 3 || c.BalanceOf(bob) != 2 {
		t.Fatalf("balances = %d/%d, want 3/2", c.BalanceOf(alice), c.BalanceOf(bob))
	}
	for serial := uint64(0); serial < 3; serial++ {
		owner, err := c.OwnerOf(serial)
		if err != nil || owner != alice {
			t.Fatalf("serial %d owner = %x err %v", serial, owner, err)
		}
	}
	for serial := uint64(3); serial < 5; serial++ {
		owner, err := c.OwnerOf(serial)
		if err != nil || owner != bob {
			t.Fatalf("serial %d owner = %x err %v", serial, owner, err)
		}
	}
	if _, err := c.OwnerOf(5); !errors.Is(err, ErrUnknownSerial) {
		t.Fatalf("unminted serial: got %v", err)
	}
	if got := c.URI("ipfs://drop/", 4); got != "ipfs://drop/4" {
		t.Fatalf("URI = %q", got)
	}
}

func TestCollectionRejectsBadMints(t *testing.T) {
	c := NewCollection()
	if err := c.Mint(sale.Address{}, sale.SingleToken{}, 1); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("zero recipient: got %v", err)
	}
	if err := c.Mint(addr(0x01), sale.SingleToken{}, 0); !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("zero quantity: got %v", err)
	}
	if c.TotalSupply() != 0 {
		t.Fatalf("supply moved on rejected mints: %d", c.TotalSupply())
	}
}

func TestMultiLedgerIsolatesTokenIDs(t *testing.T) {
	l := NewMultiLedger()
	alice := addr(0x01)

	if err := l.Mint(alice, sale.TokenID(1), 4); err != nil {
		t.Fatalf("mint id 1: %v", err)
	}
	if err := l.Mint(alice, sale.TokenID(2), 1); err != nil {
		t.Fatalf("mint id 2: %v", err)
	}

	if l.BalanceOf(alice, sale.TokenID(1)) != 4 || l.BalanceOf(alice, sale.TokenID(2)) != 1 {
		t.Fatal("balances leaked across token ids")
	}
	if l.TotalSupply(sale.TokenID(1)) != 4 || l.TotalSupply(sale.TokenID(2)) != 1 {
		t.Fatal("supply leaked across token ids")
	}
	if l.TotalSupply(sale.TokenID(3)) != 0 {
		t.Fatal("unminted id has supply")
	}
	if got := l.URI("ipfs://multi/", sale.TokenID(7)); got != "ipfs://multi/7" {
		t.Fatalf("URI = %q", got)
	}
}
