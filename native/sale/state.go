package sale

import "math/big"

// State is the persistence surface an instance engine requires. All entries
// are instance-scoped; implementations must not share sale state across
// instances.
type State[ID TokenKey] interface {
	IdentityGet() (*Identity, bool, error)
	IdentityPut(identity *Identity) error

	SaleConfigGet(token ID) (*SaleConfig, bool, error)
	SaleConfigPut(token ID, cfg *SaleConfig) error
	PresaleConfigGet(token ID) (*PresaleConfig, bool, error)
	PresaleConfigPut(token ID, cfg *PresaleConfig) error

	TotalMinted(token ID) (uint64, error)
	SetTotalMinted(token ID, minted uint64) error
	PresaleMinted(token ID, buyer Address) (uint64, error)
	SetPresaleMinted(token ID, buyer Address, minted uint64) error

	AuthorizationUsed(mark [32]byte) (bool, error)
	SetAuthorizationUsed(mark [32]byte, used bool) error
}

// Minter is the token-standard collaborator. The engine never bypasses its
// supply and ownership bookkeeping.
type Minter[ID TokenKey] interface {
	Mint(to Address, token ID, quantity uint64) error
}

// Settlement is the asset-transfer collaborator. TransferFrom pulls a
// pre-approved fungible amount towards the recipient; RefundFrom returns a
// pulled amount and restores the allowance it consumed; NativeTransfer moves
// attached native currency. Failures must be observable errors, never silent.
type Settlement interface {
	NativeTransfer(from, to Address, amount *big.Int) error
	NativeBalance(addr Address) (*big.Int, error)
	Transfer(asset Address, from, to Address, amount *big.Int) error
	TransferFrom(asset Address, from, to Address, amount *big.Int) error
	RefundFrom(asset Address, from, to Address, amount *big.Int) error
	AssetBalance(asset Address, addr Address) (*big.Int, error)
}
