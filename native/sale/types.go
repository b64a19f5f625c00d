package sale

import (
	"encoding/binary"
	"math/big"
)

// Address is a 20-byte account or instance identifier, hex-encoded on the
// wire. The zero value doubles as the native-currency sentinel for payment
// assets.
type Address = [20]byte

// TokenKey identifies a sellable token within an instance. The singleton
// (single-collection) variant uses the unit key, the multi-token variant uses
// a numeric id. Bytes feeds the persistent state key scheme.
type TokenKey interface {
	comparable
	Bytes() []byte
}

// SingleToken is the unit key for single-collection instances: one sale
// configuration governs the whole collection.
type SingleToken struct{}

// Bytes implements TokenKey.
func (SingleToken) Bytes() []byte { return nil }

// TokenID keys per-token-id sale configuration in multi-token instances.
type TokenID uint64

// Bytes implements TokenKey.
func (id TokenID) Bytes() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// Variant selects which optional capabilities an instance composes on top of
// the base sale engine.
type Variant uint8

const (
	// VariantStandard sells with no signature gate and no allow-list.
	VariantStandard Variant = iota
	// VariantBotPrevention requires a one-time authorization signature per
	// purchase.
	VariantBotPrevention
	// VariantWhitelist adds an allow-list gated presale window.
	VariantWhitelist
	// VariantWhitelistBotPrevention composes both capabilities.
	VariantWhitelistBotPrevention
)

// BotPrevention reports whether purchases require an authorization signature.
func (v Variant) BotPrevention() bool {
	return v == VariantBotPrevention || v == VariantWhitelistBotPrevention
}

// Whitelist reports whether the instance supports an allow-list presale.
func (v Variant) Whitelist() bool {
	return v == VariantWhitelist || v == VariantWhitelistBotPrevention
}

// Valid reports whether the variant is one of the known compositions.
func (v Variant) Valid() bool { return v <= VariantWhitelistBotPrevention }

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantBotPrevention:
		return "bot-prevention"
	case VariantWhitelist:
		return "whitelist"
	case VariantWhitelistBotPrevention:
		return "whitelist-bot-prevention"
	default:
		return "unknown"
	}
}

// ParseVariant maps the wire name back to a Variant.
func ParseVariant(name string) (Variant, bool) {
	switch name {
	case "standard":
		return VariantStandard, true
	case "bot-prevention":
		return VariantBotPrevention, true
	case "whitelist":
		return VariantWhitelist, true
	case "whitelist-bot-prevention":
		return VariantWhitelistBotPrevention, true
	}
	return VariantStandard, false
}

// Phase is the position of a timestamp within a token's sale window.
type Phase uint8

const (
	PhaseNotStarted Phase = iota
	PhasePresale
	PhasePublic
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhasePresale:
		return "presale"
	case PhasePublic:
		return "public"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SaleConfig is the per-token sale policy. Multi-token instances hold one per
// token id; single-collection instances hold exactly one under the unit key.
type SaleConfig struct {
	MaxTokensPerTransaction uint64   `json:"maxTokensPerTransaction"`
	UnitPrice               *big.Int `json:"unitPrice"`
	MaxSupply               uint64   `json:"maxSupply"`
	SaleStart               int64    `json:"saleStart"`
	SaleEnd                 int64    `json:"saleEnd"` // 0 = open ended
	PaymentAsset            Address  `json:"paymentAsset"`
	Active                  bool     `json:"active"`
}

// Clone returns a deep copy of the config.
func (c *SaleConfig) Clone() *SaleConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.UnitPrice = cloneBigInt(c.UnitPrice)
	return &clone
}

// PresaleConfig is the per-token presale policy for allow-list variants.
// MaxMintedPerAddress of zero keeps the presale closed.
type PresaleConfig struct {
	PublicSaleStart     int64    `json:"publicSaleStart"`
	MaxMintedPerAddress uint64   `json:"maxMintedPerAddress"`
	PresaleUnitPrice    *big.Int `json:"presaleUnitPrice"`
	AllowListRoot       [32]byte `json:"allowListRoot"`
	ListActive          bool     `json:"listActive"`
}

// Clone returns a deep copy of the presale config.
func (c *PresaleConfig) Clone() *PresaleConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.PresaleUnitPrice = cloneBigInt(c.PresaleUnitPrice)
	return &clone
}

// Identity carries the instance-scoped collection metadata. It exists exactly
// once per instance and is written at initialization.
type Identity struct {
	Name    string  `json:"name"`
	Symbol  string  `json:"symbol"`
	BaseURI string  `json:"baseURI"`
	Owner   Address `json:"owner"`
	Signer  Address `json:"signer"`
	Paused  bool    `json:"paused"`
}

// Clone returns a copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// Setting bundles the sale and optional presale policy for one token key.
// Factories pass the initial settings; the admin surface replaces them later.
type Setting[ID TokenKey] struct {
	Token   ID             `json:"token"`
	Sale    SaleConfig     `json:"sale"`
	Presale *PresaleConfig `json:"presale,omitempty"`
}

// Params is the flat initialization parameter block accepted by factories. It
// mirrors the shape collections are created with on chain deployments.
type Params struct {
	Name                    string
	Symbol                  string
	BaseURI                 string
	PaymentAsset            Address
	UnitPrice               *big.Int
	MaxSupply               uint64
	MaxTokensPerTransaction uint64
	SaleStart               int64
	SaleEnd                 int64
	PublicSaleStart         int64
	MaxMintedPerAddress     uint64
	PresaleUnitPrice        *big.Int
	Owner                   Address
}

// SingleSetting converts the flat params into the singleton token setting used
// by single-collection instances. Presale policy is attached only for
// allow-list variants.
func SingleSetting(params Params, variant Variant) Setting[SingleToken] {
	setting := Setting[SingleToken]{
		Sale: SaleConfig{
			MaxTokensPerTransaction: params.MaxTokensPerTransaction,
			UnitPrice:               cloneBigInt(params.UnitPrice),
			MaxSupply:               params.MaxSupply,
			SaleStart:               params.SaleStart,
			SaleEnd:                 params.SaleEnd,
			PaymentAsset:            params.PaymentAsset,
			Active:                  true,
		},
	}
	if variant.Whitelist() {
		setting.Presale = &PresaleConfig{
			PublicSaleStart:     params.PublicSaleStart,
			MaxMintedPerAddress: params.MaxMintedPerAddress,
			PresaleUnitPrice:    cloneBigInt(params.PresaleUnitPrice),
			ListActive:          true,
		}
	}
	return setting
}

// Purchase is a single buy attempt. Origin carries the externally-initiated
// transaction sender; purchases where Origin differs from Buyer are treated as
// contract-relayed and rejected. Value is the native currency attached to the
// call, nil when none.
type Purchase[ID TokenKey] struct {
	Buyer     Address
	Origin    Address
	Token     ID
	Quantity  uint64
	Salt      *big.Int
	Signature []byte
	Proof     [][32]byte
	Value     *big.Int
}

// Receipt describes a settled purchase.
type Receipt[ID TokenKey] struct {
	Token     ID
	Buyer     Address
	Quantity  uint64
	UnitPrice *big.Int
	Paid      *big.Int
	Phase     Phase
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr Address) bool {
	var zero Address
	return addr == zero
}
