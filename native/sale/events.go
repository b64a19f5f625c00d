package sale

import (
	"math/big"

	"mintgate/core/events"
)

func PurchaseCompleted(instance, buyer Address, token string, quantity uint64, paid *big.Int, phase Phase) events.Event {
	return events.SalePurchaseCompleted{
		Instance: instance,
		Buyer:    buyer,
		Token:    token,
		Quantity: quantity,
		Paid:     cloneBigInt(paid),
		Phase:    phase.String(),
	}
}

func ConfigUpdated(instance Address, token string) events.Event {
	return events.SaleConfigUpdated{Instance: instance, Token: token}
}

func SignerRotated(instance, signer Address) events.Event {
	return events.SaleSignerRotated{Instance: instance, Signer: signer}
}

func AllowListRootUpdated(instance Address, token string, root [32]byte) events.Event {
	return events.SaleAllowListRootUpdated{Instance: instance, Token: token, Root: root}
}

func AllowListToggled(instance Address, token string, active bool) events.Event {
	return events.SaleAllowListToggled{Instance: instance, Token: token, Active: active}
}

func PauseChanged(instance Address, paused bool) events.Event {
	return events.SalePauseChanged{Instance: instance, Paused: paused}
}

func OwnershipTransferred(instance, previous, owner Address) events.Event {
	return events.SaleOwnershipTransferred{Instance: instance, Previous: previous, Owner: owner}
}

func Withdrawal(instance, asset, to Address, amount *big.Int) events.Event {
	return events.SaleWithdrawal{Instance: instance, Asset: asset, To: to, Amount: cloneBigInt(amount)}
}

func OwnerMinted(instance Address, token string, to Address, quantity uint64) events.Event {
	return events.SaleOwnerMint{Instance: instance, Token: token, To: to, Quantity: quantity}
}
