package events

import "math/big"

const (
	TypeSalePurchaseCompleted    = "sale.purchase.completed"
	TypeSaleConfigUpdated        = "sale.config.updated"
	TypeSaleSignerRotated        = "sale.signer.rotated"
	TypeSaleAllowListRootUpdated = "sale.allowlist.root_updated"
	TypeSaleAllowListToggled     = "sale.allowlist.toggled"
	TypeSalePauseChanged         = "sale.pause.changed"
	TypeSaleOwnershipTransferred = "sale.ownership.transferred"
	TypeSaleWithdrawal           = "sale.withdrawal"
	TypeSaleOwnerMint            = "sale.owner_mint"
	TypeSaleInstanceCreated      = "sale.instance.created"
)

// SalePurchaseCompleted is emitted after a purchase settled and minted.
type SalePurchaseCompleted struct {
	Instance [20]byte
	Buyer    [20]byte
	Token    string
	Quantity uint64
	Paid     *big.Int
	Phase    string
}

func (SalePurchaseCompleted) EventType() string { return TypeSalePurchaseCompleted }

// SaleConfigUpdated is emitted when a token's sale or presale policy changes.
type SaleConfigUpdated struct {
	Instance [20]byte
	Token    string
}

func (SaleConfigUpdated) EventType() string { return TypeSaleConfigUpdated }

// SaleSignerRotated is emitted when the authorized signer changes.
type SaleSignerRotated struct {
	Instance [20]byte
	Signer   [20]byte
}

func (SaleSignerRotated) EventType() string { return TypeSaleSignerRotated }

// SaleAllowListRootUpdated is emitted when an allow-list root rotates.
type SaleAllowListRootUpdated struct {
	Instance [20]byte
	Token    string
	Root     [32]byte
}

func (SaleAllowListRootUpdated) EventType() string { return TypeSaleAllowListRootUpdated }

// SaleAllowListToggled is emitted when the allow-list gate is (de)activated.
type SaleAllowListToggled struct {
	Instance [20]byte
	Token    string
	Active   bool
}

func (SaleAllowListToggled) EventType() string { return TypeSaleAllowListToggled }

// SalePauseChanged is emitted on pause and unpause.
type SalePauseChanged struct {
	Instance [20]byte
	Paused   bool
}

func (SalePauseChanged) EventType() string { return TypeSalePauseChanged }

// SaleOwnershipTransferred is emitted when instance ownership moves.
type SaleOwnershipTransferred struct {
	Instance [20]byte
	Previous [20]byte
	Owner    [20]byte
}

func (SaleOwnershipTransferred) EventType() string { return TypeSaleOwnershipTransferred }

// SaleWithdrawal is emitted after the owner drained an instance balance.
type SaleWithdrawal struct {
	Instance [20]byte
	Asset    [20]byte
	To       [20]byte
	Amount   *big.Int
}

func (SaleWithdrawal) EventType() string { return TypeSaleWithdrawal }

// SaleOwnerMint is emitted when the owner mints outside a sale.
type SaleOwnerMint struct {
	Instance [20]byte
	Token    string
	To       [20]byte
	Quantity uint64
}

func (SaleOwnerMint) EventType() string { return TypeSaleOwnerMint }

// SaleInstanceCreated is emitted by a factory for each deployed instance.
type SaleInstanceCreated struct {
	Factory  [20]byte
	Instance [20]byte
	Variant  string
	Name     string
	Symbol   string
}

func (SaleInstanceCreated) EventType() string { return TypeSaleInstanceCreated }
