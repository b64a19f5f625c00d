// Package token hosts the narrow token-standard collaborators the sale engine
// mints through. They track supply, ownership and balances only; transfer and
// approval mechanics beyond what the platform needs stay out of scope.
package token

import (
	"errors"
	"fmt"
	"sync"

	"mintgate/native/sale"
)

var (
	ErrZeroRecipient = errors.New("token: mint to the zero address")
	ErrZeroQuantity  = errors.New("token: quantity must be positive")
	ErrUnknownSerial = errors.New("token: unknown serial")
)

// Collection is the single-collection ledger: every minted unit receives the
// next sequential serial, starting at zero.
type Collection struct {
	mu         sync.RWMutex
	owners     map[uint64]sale.Address
	balances   map[sale.Address]uint64
	nextSerial uint64
}

// NewCollection constructs an empty collection ledger.
func NewCollection() *Collection {
	return &Collection{
		owners:   make(map[uint64]sale.Address),
		balances: make(map[sale.Address]uint64),
	}
}

// Mint implements sale.Minter for the singleton token key.
func (c *Collection) Mint(to sale.Address, _ sale.SingleToken, quantity uint64) error {
	if to == (sale.Address{}) {
		return ErrZeroRecipient
	}
	if quantity == 0 {
		return ErrZeroQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := uint64(0); i < quantity; i++ {
		c.owners[c.nextSerial] = to
		c.nextSerial++
	}
	c.balances[to] += quantity
	return nil
}

// OwnerOf returns the holder of a serial.
func (c *Collection) OwnerOf(serial uint64) (sale.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[serial]
	if !ok {
		return sale.Address{}, fmt.Errorf("%w: %d", ErrUnknownSerial, serial)
	}
	return owner, nil
}

// BalanceOf returns the unit count held by an address.
func (c *Collection) BalanceOf(addr sale.Address) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[addr]
}

// TotalSupply returns the number of units minted so far.
func (c *Collection) TotalSupply() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextSerial
}

// URI renders the metadata location for a serial from the base URI.
func (c *Collection) URI(baseURI string, serial uint64) string {
	return fmt.Sprintf("%s%d", baseURI, serial)
}

// MultiLedger is the multi-token ledger: balances and supply are tracked per
// token id with no per-unit serials.
type MultiLedger struct {
	mu       sync.RWMutex
	balances map[sale.TokenID]map[sale.Address]uint64
	supply   map[sale.TokenID]uint64
}

// NewMultiLedger constructs an empty multi-token ledger.
func NewMultiLedger() *MultiLedger {
	return &MultiLedger{
		balances: make(map[sale.TokenID]map[sale.Address]uint64),
		supply:   make(map[sale.TokenID]uint64),
	}
}

// Mint implements sale.Minter for token-id keys.
func (l *MultiLedger) Mint(to sale.Address, token sale.TokenID, quantity uint64) error {
	if to == (sale.Address{}) {
		return ErrZeroRecipient
	}
	if quantity == 0 {
		return ErrZeroQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	holders := l.balances[token]
	if holders == nil {
		holders = make(map[sale.Address]uint64)
		l.balances[token] = holders
	}
	holders[to] += quantity
	l.supply[token] += quantity
	return nil
}

// BalanceOf returns the units of a token id held by an address.
func (l *MultiLedger) BalanceOf(addr sale.Address, token sale.TokenID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[token][addr]
}

// TotalSupply returns the minted units for a token id.
func (l *MultiLedger) TotalSupply(token sale.TokenID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[token]
}

// URI renders the metadata location for a token id from the base URI.
func (l *MultiLedger) URI(baseURI string, token sale.TokenID) string {
	return fmt.Sprintf("%s%d", baseURI, uint64(token))
}
