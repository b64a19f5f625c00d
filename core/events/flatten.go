package events

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"mintgate/core/types"
)

// Flatten converts a typed event into the generic wire shape consumed by log
// sinks and indexers. Unknown event types flatten to their type tag alone.
func Flatten(evt Event) types.Event {
	out := types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	switch e := evt.(type) {
	case SalePurchaseCompleted:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["buyer"] = hexAddr(e.Buyer)
		out.Attributes["token"] = e.Token
		out.Attributes["quantity"] = fmt.Sprintf("%d", e.Quantity)
		out.Attributes["paid"] = bigString(e.Paid)
		out.Attributes["phase"] = e.Phase
	case SaleConfigUpdated:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["token"] = e.Token
	case SaleSignerRotated:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["signer"] = hexAddr(e.Signer)
	case SaleAllowListRootUpdated:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["token"] = e.Token
		out.Attributes["root"] = "0x" + hex.EncodeToString(e.Root[:])
	case SaleAllowListToggled:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["token"] = e.Token
		out.Attributes["active"] = fmt.Sprintf("%t", e.Active)
	case SalePauseChanged:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["paused"] = fmt.Sprintf("%t", e.Paused)
	case SaleOwnershipTransferred:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["previous"] = hexAddr(e.Previous)
		out.Attributes["owner"] = hexAddr(e.Owner)
	case SaleWithdrawal:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["asset"] = hexAddr(e.Asset)
		out.Attributes["to"] = hexAddr(e.To)
		out.Attributes["amount"] = bigString(e.Amount)
	case SaleOwnerMint:
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["token"] = e.Token
		out.Attributes["to"] = hexAddr(e.To)
		out.Attributes["quantity"] = fmt.Sprintf("%d", e.Quantity)
	case SaleInstanceCreated:
		out.Attributes["factory"] = hexAddr(e.Factory)
		out.Attributes["instance"] = hexAddr(e.Instance)
		out.Attributes["variant"] = e.Variant
		out.Attributes["name"] = e.Name
		out.Attributes["symbol"] = e.Symbol
	}
	return out
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
