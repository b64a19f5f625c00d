// Package bank is the in-process asset-transfer collaborator: native currency
// balances, fungible token balances and allowances. The sale engine consumes
// it through the sale.Settlement interface; every failure is an observable
// error so settlement can never silently drop funds.
package bank

import (
	"errors"
	"math/big"
	"sync"

	"mintgate/native/sale"
)

var (
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrInsufficientFunds     = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrTransferRejected      = errors.New("bank: recipient rejected transfer")
)

type allowanceKey struct {
	asset   sale.Address
	owner   sale.Address
	spender sale.Address
}

type assetKey struct {
	asset  sale.Address
	holder sale.Address
}

// Ledger holds all balances. Safe for concurrent readers; mutations are
// serialized.
type Ledger struct {
	mu           sync.RWMutex
	native       map[sale.Address]*big.Int
	assets       map[assetKey]*big.Int
	allowances   map[allowanceKey]*big.Int
	rejectNative map[sale.Address]bool
}

// NewLedger constructs an empty bank ledger.
func NewLedger() *Ledger {
	return &Ledger{
		native:       make(map[sale.Address]*big.Int),
		assets:       make(map[assetKey]*big.Int),
		allowances:   make(map[allowanceKey]*big.Int),
		rejectNative: make(map[sale.Address]bool),
	}
}

// MintNative credits native currency. Test and genesis helper.
func (l *Ledger) MintNative(addr sale.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[addr] = add(l.native[addr], amount)
}

// MintAsset credits a fungible token balance. Test and genesis helper.
func (l *Ledger) MintAsset(asset, addr sale.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetKey{asset: asset, holder: addr}
	l.assets[key] = add(l.assets[key], amount)
}

// SetRejectNative marks an address as refusing incoming native transfers,
// mirroring contract recipients without a payable path. Used to exercise
// withdraw failure handling.
func (l *Ledger) SetRejectNative(addr sale.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectNative[addr] = reject
}

// Approve grants a spender a pull allowance on the owner's asset balance.
func (l *Ledger) Approve(asset, owner, spender sale.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey{asset: asset, owner: owner, spender: spender}
	if amount == nil || amount.Sign() <= 0 {
		delete(l.allowances, key)
		return
	}
	l.allowances[key] = new(big.Int).Set(amount)
}

// Allowance returns the remaining pull allowance.
func (l *Ledger) Allowance(asset, owner, spender sale.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clone(l.allowances[allowanceKey{asset: asset, owner: owner, spender: spender}])
}

// NativeBalance implements sale.Settlement.
func (l *Ledger) NativeBalance(addr sale.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clone(l.native[addr]), nil
}

// AssetBalance implements sale.Settlement.
func (l *Ledger) AssetBalance(asset, addr sale.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clone(l.assets[assetKey{asset: asset, holder: addr}]), nil
}

// NativeTransfer implements sale.Settlement.
func (l *Ledger) NativeTransfer(from, to sale.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rejectNative[to] {
		return ErrTransferRejected
	}
	balance := l.native[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	l.native[from] = new(big.Int).Sub(balance, amount)
	l.native[to] = add(l.native[to], amount)
	return nil
}

// Transfer implements sale.Settlement: a direct fungible transfer initiated by
// the holder.
func (l *Ledger) Transfer(asset, from, to sale.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveAsset(asset, from, to, amount)
}

// TransferFrom implements sale.Settlement: the recipient pulls a pre-approved
// amount from the owner's balance, debiting the allowance.
func (l *Ledger) TransferFrom(asset, from, to sale.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey{asset: asset, owner: from, spender: to}
	allowance := l.allowances[key]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.moveAsset(asset, from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

// RefundFrom implements sale.Settlement: the spender returns a pulled amount
// to the owner and the allowance consumed by the matching TransferFrom is
// restored, so the owner can retry without re-approving.
func (l *Ledger) RefundFrom(asset, from, to sale.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.moveAsset(asset, from, to, amount); err != nil {
		return err
	}
	key := allowanceKey{asset: asset, owner: to, spender: from}
	l.allowances[key] = add(l.allowances[key], amount)
	return nil
}

func (l *Ledger) moveAsset(asset, from, to sale.Address, amount *big.Int) error {
	fromKey := assetKey{asset: asset, holder: from}
	balance := l.assets[fromKey]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	l.assets[fromKey] = new(big.Int).Sub(balance, amount)
	toKey := assetKey{asset: asset, holder: to}
	l.assets[toKey] = add(l.assets[toKey], amount)
	return nil
}

func add(a, b *big.Int) *big.Int {
	if a == nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Add(a, b)
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
