package sale

import "errors"

var (
	// Configuration errors. Rejected at the admin call, instance state
	// unchanged.
	ErrInvalidWindow        = errors.New("sale: invalid sale window")
	ErrInvalidPresaleWindow = errors.New("sale: invalid public sale time")
	ErrZeroPerTxCap         = errors.New("sale: max tokens per tx cannot be 0")
	ErrSupplyBelowMinted    = errors.New("sale: max supply below minted count")
	ErrInvalidPresaleCap    = errors.New("sale: invalid max mint per address")
	ErrZeroSigner           = errors.New("sale: signer cannot be the zero address")
	ErrZeroOwner            = errors.New("sale: owner cannot be the zero address")
	ErrAlreadyInitialized   = errors.New("sale: instance already initialized")
	ErrNotInitialized       = errors.New("sale: instance not initialized")
	ErrAllowListActive      = errors.New("sale: allow list is active")
	ErrAllowListInactive    = errors.New("sale: allow list is not active")
	ErrNegativePrice        = errors.New("sale: price must be non-negative")

	// Authorization errors. Rejected before any balance or ledger mutation.
	ErrUnauthorized        = errors.New("sale: caller is not the owner")
	ErrCallerNotEOA        = errors.New("sale: caller must be EOA")
	ErrPaused              = errors.New("sale: sales are paused")
	ErrInvalidSignature    = errors.New("sale: invalid signature")
	ErrSignatureReplayed   = errors.New("sale: signature has been used")
	ErrSignerNotConfigured = errors.New("sale: authorized signer not configured")
	ErrPresaleUnauthorized = errors.New("sale: unauthorized to join the presale")

	// Capacity errors. Rejected before payment settlement.
	ErrPerTxCapExceeded     = errors.New("sale: max purchase per one transaction exceeded")
	ErrPresaleLimitExceeded = errors.New("sale: presale limit exceeded")
	ErrSupplyExceeded       = errors.New("sale: exceeded max supply")
	ErrTokenInactive        = errors.New("sale: token sale not active")
	ErrSaleNotStarted       = errors.New("sale: sale has not been started")
	ErrSaleEnded            = errors.New("sale: sale has been finished")

	// Payment and settlement errors.
	ErrInvalidPayment   = errors.New("sale: invalid payment amount")
	ErrNativeNotAllowed = errors.New("sale: native currency not allowed")
	ErrWithdrawFailed   = errors.New("sale: failed to withdraw native balance")
)
