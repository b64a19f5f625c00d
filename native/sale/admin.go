package sale

import (
	"fmt"
	"math/big"
)

// requireOwner loads the identity and gates the caller.
func (e *Engine[ID]) requireOwner(caller Address) (*Identity, error) {
	identity, err := e.Identity()
	if err != nil {
		return nil, err
	}
	if caller != identity.Owner {
		return nil, ErrUnauthorized
	}
	return identity, nil
}

// Configure atomically replaces the sale (and optional presale) policy for a
// token key. Validation runs against the current minted count; the allocation
// ledger is never touched.
func (e *Engine[ID]) Configure(caller Address, setting Setting[ID]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	minted, err := e.state.TotalMinted(setting.Token)
	if err != nil {
		return err
	}
	if err := ValidateSetting(&setting.Sale, setting.Presale, minted); err != nil {
		return err
	}
	if setting.Presale == nil && e.variant.Whitelist() {
		// Keep the existing presale policy when the caller only replaces the
		// sale side.
		existing, err := e.Presale(setting.Token)
		if err != nil {
			return err
		}
		setting.Presale = existing
	}
	if err := e.putSetting(setting); err != nil {
		return err
	}
	e.emit(ConfigUpdated(e.address, tokenLabel(setting.Token)))
	return nil
}

// ConfigureBatch applies several token settings in one owner call. Validation
// runs first for every entry so a bad entry rejects the whole batch.
func (e *Engine[ID]) ConfigureBatch(caller Address, settings []Setting[ID]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	for i := range settings {
		minted, err := e.state.TotalMinted(settings[i].Token)
		if err != nil {
			return err
		}
		if err := ValidateSetting(&settings[i].Sale, settings[i].Presale, minted); err != nil {
			return fmt.Errorf("setting %d: %w", i, err)
		}
	}
	for i := range settings {
		if err := e.putSetting(settings[i]); err != nil {
			return err
		}
		e.emit(ConfigUpdated(e.address, tokenLabel(settings[i].Token)))
	}
	return nil
}

// SetUnitPrice updates the public unit price for a token.
func (e *Engine[ID]) SetUnitPrice(caller Address, token ID, price *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if price != nil && price.Sign() < 0 {
		return ErrNegativePrice
	}
	cfg, err := e.Config(token)
	if err != nil {
		return err
	}
	cfg.UnitPrice = cloneBigInt(price)
	if err := e.state.SaleConfigPut(token, cfg); err != nil {
		return err
	}
	e.emit(ConfigUpdated(e.address, tokenLabel(token)))
	return nil
}

// SetPresaleUnitPrice updates the presale unit price for a token.
func (e *Engine[ID]) SetPresaleUnitPrice(caller Address, token ID, price *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if price != nil && price.Sign() < 0 {
		return ErrNegativePrice
	}
	presale, err := e.Presale(token)
	if err != nil {
		return err
	}
	if presale == nil {
		presale = &PresaleConfig{ListActive: e.variant.Whitelist()}
	}
	presale.PresaleUnitPrice = cloneBigInt(price)
	if err := e.state.PresaleConfigPut(token, presale); err != nil {
		return err
	}
	e.emit(ConfigUpdated(e.address, tokenLabel(token)))
	return nil
}

// SetMaxTokensPerTransaction updates the per-transaction cap; zero stays
// rejected.
func (e *Engine[ID]) SetMaxTokensPerTransaction(caller Address, token ID, limit uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if limit == 0 {
		return ErrZeroPerTxCap
	}
	cfg, err := e.Config(token)
	if err != nil {
		return err
	}
	cfg.MaxTokensPerTransaction = limit
	if err := e.state.SaleConfigPut(token, cfg); err != nil {
		return err
	}
	e.emit(ConfigUpdated(e.address, tokenLabel(token)))
	return nil
}

// SetMaxMintedPerAddress updates the per-address presale cap, bounded by the
// token's max supply.
func (e *Engine[ID]) SetMaxMintedPerAddress(caller Address, token ID, limit uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := e.Config(token)
	if err != nil {
		return err
	}
	if limit > cfg.MaxSupply {
		return ErrInvalidPresaleCap
	}
	presale, err := e.Presale(token)
	if err != nil {
		return err
	}
	if presale == nil {
		presale = &PresaleConfig{ListActive: e.variant.Whitelist()}
	}
	presale.MaxMintedPerAddress = limit
	if err := e.state.PresaleConfigPut(token, presale); err != nil {
		return err
	}
	e.emit(ConfigUpdated(e.address, tokenLabel(token)))
	return nil
}

// UpdateAllowListRoot rotates the committed Merkle root. The zero digest
// leaves the presale closed while the list stays active, since no proof can
// verify against it.
func (e *Engine[ID]) UpdateAllowListRoot(caller Address, token ID, root [32]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	presale, err := e.Presale(token)
	if err != nil {
		return err
	}
	if presale == nil {
		presale = &PresaleConfig{ListActive: e.variant.Whitelist()}
	}
	presale.AllowListRoot = root
	if err := e.state.PresaleConfigPut(token, presale); err != nil {
		return err
	}
	e.emit(AllowListRootUpdated(e.address, tokenLabel(token), root))
	return nil
}

// ActivateAllowList re-enables proof-gated presale admission.
func (e *Engine[ID]) ActivateAllowList(caller Address, token ID) error {
	return e.toggleAllowList(caller, token, true)
}

// DeactivateAllowList switches the presale to the public-window fallback
// without proofs.
func (e *Engine[ID]) DeactivateAllowList(caller Address, token ID) error {
	return e.toggleAllowList(caller, token, false)
}

func (e *Engine[ID]) toggleAllowList(caller Address, token ID, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	presale, err := e.Presale(token)
	if err != nil {
		return err
	}
	if presale == nil {
		return ErrPresaleUnauthorized
	}
	if presale.ListActive == active {
		if active {
			return ErrAllowListActive
		}
		return ErrAllowListInactive
	}
	presale.ListActive = active
	if err := e.state.PresaleConfigPut(token, presale); err != nil {
		return err
	}
	e.emit(AllowListToggled(e.address, tokenLabel(token), active))
	return nil
}

// RotateSigner replaces the authorized signer. The zero address is rejected
// rather than treated as a silent disable.
func (e *Engine[ID]) RotateSigner(caller Address, signer Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if isZeroAddress(signer) {
		return ErrZeroSigner
	}
	identity.Signer = signer
	if err := e.state.IdentityPut(identity); err != nil {
		return err
	}
	e.emit(SignerRotated(e.address, signer))
	return nil
}

// Pause blocks purchases until Unpause. Transfers on the token collaborator
// are unaffected.
func (e *Engine[ID]) Pause(caller Address) error {
	return e.setPaused(caller, true)
}

// Unpause re-enables purchases.
func (e *Engine[ID]) Unpause(caller Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine[ID]) setPaused(caller Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	identity.Paused = paused
	if err := e.state.IdentityPut(identity); err != nil {
		return err
	}
	e.emit(PauseChanged(e.address, paused))
	return nil
}

// SetBaseURI replaces the metadata base URI.
func (e *Engine[ID]) SetBaseURI(caller Address, baseURI string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	identity.BaseURI = baseURI
	return e.state.IdentityPut(identity)
}

// TransferOwnership hands the instance to a new owner.
func (e *Engine[ID]) TransferOwnership(caller Address, owner Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if isZeroAddress(owner) {
		return ErrZeroOwner
	}
	previous := identity.Owner
	identity.Owner = owner
	if err := e.state.IdentityPut(identity); err != nil {
		return err
	}
	e.emit(OwnershipTransferred(e.address, previous, owner))
	return nil
}

// OwnerMint mints outside a sale window. It still honors the supply cap and
// debits the allocation ledger before calling the minter.
func (e *Engine[ID]) OwnerMint(caller Address, token ID, to Address, quantity uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if quantity == 0 {
		return ErrPerTxCapExceeded
	}
	cfg, err := e.Config(token)
	if err != nil {
		return err
	}
	minted, err := e.state.TotalMinted(token)
	if err != nil {
		return err
	}
	if minted+quantity > cfg.MaxSupply {
		return ErrSupplyExceeded
	}
	if err := e.state.SetTotalMinted(token, minted+quantity); err != nil {
		return err
	}
	if err := e.minter.Mint(to, token, quantity); err != nil {
		_ = e.state.SetTotalMinted(token, minted)
		return err
	}
	e.emit(OwnerMinted(e.address, tokenLabel(token), to, quantity))
	return nil
}

// Withdraw drains the instance's entire balance of the named asset to the
// owner. The zero asset selects the native balance; a failed native transfer
// is reported as a distinct withdraw error.
func (e *Engine[ID]) Withdraw(caller Address, asset Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, err := e.requireOwner(caller)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if isZeroAddress(asset) {
		balance, err = e.bank.NativeBalance(e.address)
	} else {
		balance, err = e.bank.AssetBalance(asset, e.address)
	}
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if isZeroAddress(asset) {
		if err := e.bank.NativeTransfer(e.address, identity.Owner, balance); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWithdrawFailed, err)
		}
	} else {
		if err := e.bank.Transfer(asset, e.address, identity.Owner, balance); err != nil {
			return nil, err
		}
	}
	e.emit(Withdrawal(e.address, asset, identity.Owner, balance))
	return balance, nil
}
