package bank

import (
	"errors"
	"math/big"
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

func TestNativeTransfer(t *testing.T) {
	l := NewLedger()
	alice := addr(0x01)
	bob := addr(0x02)
	l.MintNative(alice, big.NewInt(100))

	if err := l.NativeTransfer(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := l.NativeBalance(alice)
	bobBalance, _ := l.NativeBalance(bob)
	if aliceBalance.Cmp(big.NewInt(40)) != 0 || bobBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balances = %s/%s, want 40/60", aliceBalance, bobBalance)
	}

	if err := l.NativeTransfer(alice, bob, big.NewInt(41)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}
	if err := l.NativeTransfer(alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := l.NativeTransfer(alice, bob, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
}

func TestNativeTransferRejection(t *testing.T) {
	l := NewLedger()
	alice := addr(0x01)
	vault := addr(0x02)
	l.MintNative(alice, big.NewInt(100))
	l.SetRejectNative(vault, true)

	if err := l.NativeTransfer(alice, vault, big.NewInt(10)); !errors.Is(err, ErrTransferRejected) {
		t.Fatalf("rejected recipient: got %v", err)
	}
	balance, _ := l.NativeBalance(alice)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("funds moved on rejected transfer: %s", balance)
	}

	l.SetRejectNative(vault, false)
	if err := l.NativeTransfer(alice, vault, big.NewInt(10)); err != nil {
		t.Fatalf("after unset: %v", err)
	}
}

func TestTransferFromDebitsAllowance(t *testing.T) {
	l := NewLedger()
	asset := addr(0xAA)
	owner := addr(0x01)
	spender := addr(0x02)
	l.MintAsset(asset, owner, big.NewInt(100))

	if err := l.TransferFrom(asset, owner, spender, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("no allowance: got %v", err)
	}

	l.Approve(asset, owner, spender, big.NewInt(30))
	if err := l.TransferFrom(asset, owner, spender, big.NewInt(20)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got := l.Allowance(asset, owner, spender); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("remaining allowance = %s, want 10", got)
	}
	if err := l.TransferFrom(asset, owner, spender, big.NewInt(11)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("over allowance: got %v", err)
	}

	spenderBalance, _ := l.AssetBalance(asset, spender)
	if spenderBalance.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("spender balance = %s, want 20", spenderBalance)
	}

	// Allowance without funds still fails on balance.
	broke := addr(0x03)
	l.Approve(asset, broke, spender, big.NewInt(50))
	if err := l.TransferFrom(asset, broke, spender, big.NewInt(50)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("allowance without funds: got %v", err)
	}
}

func TestRefundFromRestoresAllowance(t *testing.T) {
	l := NewLedger()
	asset := addr(0xAA)
	owner := addr(0x01)
	spender := addr(0x02)
	l.MintAsset(asset, owner, big.NewInt(100))
	l.Approve(asset, owner, spender, big.NewInt(30))

	if err := l.TransferFrom(asset, owner, spender, big.NewInt(20)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if err := l.RefundFrom(asset, spender, owner, big.NewInt(20)); err != nil {
		t.Fatalf("refund: %v", err)
	}

	if got := l.Allowance(asset, owner, spender); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("allowance after refund = %s, want 30", got)
	}
	ownerBalance, _ := l.AssetBalance(asset, owner)
	if ownerBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("owner balance after refund = %s, want 100", ownerBalance)
	}

	// A refund the spender cannot cover fails on balance.
	if err := l.RefundFrom(asset, spender, owner, big.NewInt(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("uncovered refund: got %v", err)
	}
}

func TestBalancesAreCopies(t *testing.T) {
	l := NewLedger()
	alice := addr(0x01)
	l.MintNative(alice, big.NewInt(100))

	balance, _ := l.NativeBalance(alice)
	balance.SetInt64(0)
	again, _ := l.NativeBalance(alice)
	if again.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("NativeBalance exposed internal state")
	}
}
