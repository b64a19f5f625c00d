package sale

import (
	"fmt"
	"math/big"
)

// PhaseAt computes the sale phase for a timestamp. It is a pure function of
// the window fields: the end bound is exclusive, the start bounds inclusive.
// A presale window exists only while the presale config places the public
// start strictly after the sale start.
func PhaseAt(cfg *SaleConfig, presale *PresaleConfig, ts int64) Phase {
	if cfg == nil {
		return PhaseNotStarted
	}
	if cfg.SaleEnd != 0 && ts >= cfg.SaleEnd {
		return PhaseEnded
	}
	publicStart := cfg.SaleStart
	if presale != nil && presale.PublicSaleStart > publicStart {
		publicStart = presale.PublicSaleStart
	}
	if ts >= publicStart {
		return PhasePublic
	}
	if presale != nil && ts >= cfg.SaleStart && ts < publicStart {
		return PhasePresale
	}
	return PhaseNotStarted
}

// RequiredPayment returns the total amount owed for the quantity at the given
// phase. Presale purchases use the presale unit price, everything else the
// public unit price.
func RequiredPayment(cfg *SaleConfig, presale *PresaleConfig, phase Phase, quantity uint64) *big.Int {
	price := unitPriceFor(cfg, presale, phase)
	return new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))
}

func unitPriceFor(cfg *SaleConfig, presale *PresaleConfig, phase Phase) *big.Int {
	if phase == PhasePresale && presale != nil {
		return cloneBigInt(presale.PresaleUnitPrice)
	}
	if cfg == nil {
		return big.NewInt(0)
	}
	return cloneBigInt(cfg.UnitPrice)
}

// ValidateSetting checks a sale/presale policy pair against the configuration
// invariants. minted is the current total minted for the token, so supply can
// never be configured below what is already out.
func ValidateSetting(cfg *SaleConfig, presale *PresaleConfig, minted uint64) error {
	if cfg == nil {
		return fmt.Errorf("%w: config required", ErrInvalidWindow)
	}
	if cfg.MaxTokensPerTransaction == 0 {
		return ErrZeroPerTxCap
	}
	if cfg.SaleStart <= 0 {
		return fmt.Errorf("%w: invalid start time", ErrInvalidWindow)
	}
	if cfg.SaleEnd != 0 && cfg.SaleEnd <= cfg.SaleStart {
		return fmt.Errorf("%w: end not after start", ErrInvalidWindow)
	}
	if cfg.UnitPrice != nil && cfg.UnitPrice.Sign() < 0 {
		return ErrNegativePrice
	}
	if cfg.MaxSupply < minted {
		return ErrSupplyBelowMinted
	}
	if presale != nil {
		if presale.PublicSaleStart < cfg.SaleStart {
			return ErrInvalidPresaleWindow
		}
		if presale.PresaleUnitPrice != nil && presale.PresaleUnitPrice.Sign() < 0 {
			return ErrNegativePrice
		}
		if presale.MaxMintedPerAddress > cfg.MaxSupply {
			return ErrInvalidPresaleCap
		}
	}
	return nil
}
