package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"mintgate/core/events"
)

// Engine is the sale and allocation engine for one deployed instance. It is
// generic over the token key so the single-collection and multi-token
// variants share one state machine. The engine holds no mutable sale state
// itself; everything lives behind the State interface. Mutating calls are
// serialized per instance, so concurrent purchases cannot interleave between
// the supply check and the ledger write.
type Engine[ID TokenKey] struct {
	address Address
	variant Variant
	state   State[ID]
	minter  Minter[ID]
	bank    Settlement
	emitter events.Emitter
	nowFn   func() int64

	mu sync.Mutex
}

// NewEngine wires an instance engine with its collaborators.
func NewEngine[ID TokenKey](address Address, variant Variant, state State[ID], minter Minter[ID], bank Settlement) *Engine[ID] {
	return &Engine[ID]{
		address: address,
		variant: variant,
		state:   state,
		minter:  minter,
		bank:    bank,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil restores the no-op
// emitter.
func (e *Engine[ID]) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock for deterministic testing.
func (e *Engine[ID]) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the instance address.
func (e *Engine[ID]) Address() Address { return e.address }

// Variant returns the capability composition of the instance.
func (e *Engine[ID]) Variant() Variant { return e.variant }

// Initialize writes the collection identity and the initial token settings.
// It runs exactly once per instance; a second call fails.
func (e *Engine[ID]) Initialize(identity Identity, settings []Setting[ID]) error {
	if e == nil || e.state == nil {
		return fmt.Errorf("sale: engine state not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.state.IdentityGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if isZeroAddress(identity.Owner) {
		return ErrZeroOwner
	}
	for i := range settings {
		if err := ValidateSetting(&settings[i].Sale, settings[i].Presale, 0); err != nil {
			return err
		}
	}
	if err := e.state.IdentityPut(identity.Clone()); err != nil {
		return err
	}
	for i := range settings {
		if err := e.putSetting(settings[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine[ID]) putSetting(setting Setting[ID]) error {
	if err := e.state.SaleConfigPut(setting.Token, setting.Sale.Clone()); err != nil {
		return err
	}
	if setting.Presale != nil {
		return e.state.PresaleConfigPut(setting.Token, setting.Presale.Clone())
	}
	return nil
}

// Identity returns the collection identity.
func (e *Engine[ID]) Identity() (*Identity, error) {
	identity, ok, err := e.state.IdentityGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return identity, nil
}

// Config returns the sale policy for a token key.
func (e *Engine[ID]) Config(token ID) (*SaleConfig, error) {
	cfg, ok, err := e.state.SaleConfigGet(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no sale config for token", ErrTokenInactive)
	}
	return cfg, nil
}

// Presale returns the presale policy for a token key, nil when none is set.
func (e *Engine[ID]) Presale(token ID) (*PresaleConfig, error) {
	presale, ok, err := e.state.PresaleConfigGet(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return presale, nil
}

// TotalMinted returns the allocation ledger counter for a token.
func (e *Engine[ID]) TotalMinted(token ID) (uint64, error) {
	return e.state.TotalMinted(token)
}

// PresaleMinted returns the per-address presale counter for a token.
func (e *Engine[ID]) PresaleMinted(token ID, buyer Address) (uint64, error) {
	return e.state.PresaleMinted(token, buyer)
}

// PhaseAt reports the sale phase of a token at the supplied timestamp.
func (e *Engine[ID]) PhaseAt(token ID, ts int64) (Phase, error) {
	cfg, err := e.Config(token)
	if err != nil {
		return PhaseNotStarted, err
	}
	presale, err := e.Presale(token)
	if err != nil {
		return PhaseNotStarted, err
	}
	return PhaseAt(cfg, presale, ts), nil
}

// CheckAllowListed verifies a membership proof against the committed root for
// a token. Read-only.
func (e *Engine[ID]) CheckAllowListed(token ID, addr Address, proof [][32]byte) (bool, error) {
	presale, err := e.Presale(token)
	if err != nil {
		return false, err
	}
	if presale == nil {
		return false, nil
	}
	return VerifyAllowListProof(presale.AllowListRoot, addr, proof), nil
}

// BuyPublic executes a public-phase purchase.
func (e *Engine[ID]) BuyPublic(p Purchase[ID]) (*Receipt[ID], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, cfg, presale, err := e.loadSale(p.Token)
	if err != nil {
		return nil, err
	}
	if err := e.commonChecks(identity, cfg, p); err != nil {
		return nil, err
	}
	switch PhaseAt(cfg, presale, e.nowFn()) {
	case PhasePublic:
	case PhaseEnded:
		return nil, ErrSaleEnded
	default:
		return nil, ErrSaleNotStarted
	}
	var mark [32]byte
	hasMark := false
	if e.variant.BotPrevention() {
		if mark, err = e.authorize(identity, p.Buyer, p.Salt, p.Signature); err != nil {
			return nil, err
		}
		hasMark = true
	}
	if err := e.checkSupply(p.Token, cfg, p.Quantity); err != nil {
		return nil, err
	}
	return e.settleAndMint(cfg, presale, p, PhasePublic, mark, hasMark, false)
}

// BuyPresale executes an allow-list presale purchase. With the allow-list
// toggle deactivated the purchase follows the public window and skips proof
// checks, but keeps the presale price and per-address cap.
func (e *Engine[ID]) BuyPresale(p Purchase[ID]) (*Receipt[ID], error) {
	if !e.variant.Whitelist() {
		return nil, ErrPresaleUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	identity, cfg, presale, err := e.loadSale(p.Token)
	if err != nil {
		return nil, err
	}
	if presale == nil {
		return nil, ErrPresaleUnauthorized
	}
	if err := e.commonChecks(identity, cfg, p); err != nil {
		return nil, err
	}
	phase := PhaseAt(cfg, presale, e.nowFn())
	if presale.ListActive {
		switch phase {
		case PhasePresale:
		case PhaseEnded:
			return nil, ErrSaleEnded
		case PhasePublic:
			return nil, ErrPresaleUnauthorized
		default:
			return nil, ErrSaleNotStarted
		}
	} else {
		// Deactivated list: presale pricing stays but admission follows the
		// public window without proofs.
		switch phase {
		case PhasePresale, PhasePublic:
			if e.nowFn() < max(cfg.SaleStart, presale.PublicSaleStart) {
				return nil, ErrSaleNotStarted
			}
		case PhaseEnded:
			return nil, ErrSaleEnded
		default:
			return nil, ErrSaleNotStarted
		}
	}
	// An active list with no committed root admits nobody; reject before the
	// signature gate so the admission error surfaces first.
	if presale.ListActive && presale.AllowListRoot == ([32]byte{}) {
		return nil, ErrPresaleUnauthorized
	}
	var mark [32]byte
	hasMark := false
	if e.variant.BotPrevention() {
		if mark, err = e.authorize(identity, p.Buyer, p.Salt, p.Signature); err != nil {
			return nil, err
		}
		hasMark = true
	}
	if presale.ListActive && !VerifyAllowListProof(presale.AllowListRoot, p.Buyer, p.Proof) {
		return nil, ErrPresaleUnauthorized
	}
	// Per-address cap strictly before the global supply cap.
	already, err := e.state.PresaleMinted(p.Token, p.Buyer)
	if err != nil {
		return nil, err
	}
	if already+p.Quantity > presale.MaxMintedPerAddress {
		return nil, ErrPresaleLimitExceeded
	}
	if err := e.checkSupply(p.Token, cfg, p.Quantity); err != nil {
		return nil, err
	}
	return e.settleAndMint(cfg, presale, p, PhasePresale, mark, hasMark, true)
}

func (e *Engine[ID]) loadSale(token ID) (*Identity, *SaleConfig, *PresaleConfig, error) {
	identity, err := e.Identity()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := e.Config(token)
	if err != nil {
		return nil, nil, nil, err
	}
	presale, err := e.Presale(token)
	if err != nil {
		return nil, nil, nil, err
	}
	return identity, cfg, presale, nil
}

func (e *Engine[ID]) commonChecks(identity *Identity, cfg *SaleConfig, p Purchase[ID]) error {
	if p.Origin != p.Buyer || isZeroAddress(p.Buyer) {
		return ErrCallerNotEOA
	}
	if identity.Paused {
		return ErrPaused
	}
	if p.Quantity == 0 || p.Quantity > cfg.MaxTokensPerTransaction {
		return ErrPerTxCapExceeded
	}
	if !cfg.Active {
		return ErrTokenInactive
	}
	return nil
}

func (e *Engine[ID]) checkSupply(token ID, cfg *SaleConfig, quantity uint64) error {
	minted, err := e.state.TotalMinted(token)
	if err != nil {
		return err
	}
	if minted+quantity > cfg.MaxSupply {
		return ErrSupplyExceeded
	}
	return nil
}

// settleAndMint validates payment, stages the ledger mutations, settles via
// the asset-transfer collaborator and finally mints. Staged mutations are
// reverted if a collaborator fails so a purchase is all-or-nothing.
func (e *Engine[ID]) settleAndMint(cfg *SaleConfig, presale *PresaleConfig, p Purchase[ID], phase Phase, mark [32]byte, hasMark bool, isPresale bool) (*Receipt[ID], error) {
	owed := RequiredPayment(cfg, presale, phase, p.Quantity)
	tendered := big.NewInt(0)
	if p.Value != nil {
		tendered = p.Value
	}
	nativeSale := isZeroAddress(cfg.PaymentAsset)
	if nativeSale {
		if tendered.Cmp(owed) != 0 {
			return nil, ErrInvalidPayment
		}
	} else if tendered.Sign() != 0 {
		return nil, ErrNativeNotAllowed
	}

	// Effects before interactions: ledger counters and the replay mark are
	// committed ahead of the settlement and mint calls.
	minted, err := e.state.TotalMinted(p.Token)
	if err != nil {
		return nil, err
	}
	var presaleMinted uint64
	if isPresale {
		if presaleMinted, err = e.state.PresaleMinted(p.Token, p.Buyer); err != nil {
			return nil, err
		}
	}
	undo, err := e.stageEffects(p, minted, presaleMinted, mark, hasMark, isPresale)
	if err != nil {
		return nil, err
	}

	if owed.Sign() > 0 {
		if nativeSale {
			err = e.bank.NativeTransfer(p.Buyer, e.address, owed)
		} else {
			err = e.bank.TransferFrom(cfg.PaymentAsset, p.Buyer, e.address, owed)
		}
		if err != nil {
			undo()
			return nil, err
		}
	}

	if err := e.minter.Mint(p.Buyer, p.Token, p.Quantity); err != nil {
		if owed.Sign() > 0 {
			if nativeSale {
				_ = e.bank.NativeTransfer(e.address, p.Buyer, owed)
			} else {
				// RefundFrom restores the allowance the pull consumed, so a
				// retry needs no re-approval.
				_ = e.bank.RefundFrom(cfg.PaymentAsset, e.address, p.Buyer, owed)
			}
		}
		undo()
		return nil, err
	}

	receipt := &Receipt[ID]{
		Token:     p.Token,
		Buyer:     p.Buyer,
		Quantity:  p.Quantity,
		UnitPrice: unitPriceFor(cfg, presale, phase),
		Paid:      owed,
		Phase:     phase,
	}
	e.emit(PurchaseCompleted(e.address, p.Buyer, tokenLabel(p.Token), p.Quantity, owed, phase))
	return receipt, nil
}

func (e *Engine[ID]) stageEffects(p Purchase[ID], minted, presaleMinted uint64, mark [32]byte, hasMark bool, isPresale bool) (func(), error) {
	if hasMark {
		if err := e.state.SetAuthorizationUsed(mark, true); err != nil {
			return nil, err
		}
	}
	if err := e.state.SetTotalMinted(p.Token, minted+p.Quantity); err != nil {
		if hasMark {
			_ = e.state.SetAuthorizationUsed(mark, false)
		}
		return nil, err
	}
	if isPresale {
		if err := e.state.SetPresaleMinted(p.Token, p.Buyer, presaleMinted+p.Quantity); err != nil {
			_ = e.state.SetTotalMinted(p.Token, minted)
			if hasMark {
				_ = e.state.SetAuthorizationUsed(mark, false)
			}
			return nil, err
		}
	}
	undo := func() {
		if isPresale {
			_ = e.state.SetPresaleMinted(p.Token, p.Buyer, presaleMinted)
		}
		_ = e.state.SetTotalMinted(p.Token, minted)
		if hasMark {
			_ = e.state.SetAuthorizationUsed(mark, false)
		}
	}
	return undo, nil
}

func (e *Engine[ID]) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func tokenLabel[ID TokenKey](token ID) string {
	b := token.Bytes()
	if len(b) == 0 {
		return "collection"
	}
	return fmt.Sprintf("%d", bytesToUint64(b))
}

func bytesToUint64(b []byte) uint64 {
	var out uint64
	for _, v := range b {
		out = out<<8 | uint64(v)
	}
	return out
}
