package sale

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// saltWord packs the salt into the 32-byte word the signer committed to. A
// nil salt is the zero word; negative or wider-than-256-bit salts are
// rejected rather than truncated.
func saltWord(salt *big.Int) ([32]byte, bool) {
	var buf [32]byte
	if salt == nil {
		return buf, true
	}
	if salt.Sign() < 0 || salt.BitLen() > 256 {
		return buf, false
	}
	salt.FillBytes(buf[:])
	return buf, true
}

// AuthorizationDigest binds a buyer, an instance and a one-time salt into the
// digest the authorized signer signs. The inner keccak over the packed fields
// is wrapped with the personal-sign prefix, matching off-chain signing tools.
// Salts that do not fit an unsigned 256-bit word are rejected.
func AuthorizationDigest(buyer Address, instance Address, salt *big.Int) ([32]byte, error) {
	word, ok := saltWord(salt)
	if !ok {
		var out [32]byte
		return out, fmt.Errorf("%w: salt wider than 32 bytes", ErrInvalidSignature)
	}
	return digestFromWord(buyer, instance, word), nil
}

func digestFromWord(buyer Address, instance Address, salt [32]byte) [32]byte {
	inner := ethcrypto.Keccak256(buyer[:], instance[:], salt[:])
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(signedMessagePrefix), inner))
	return out
}

// RecoverAuthorizer recovers the signing address from a 65-byte signature
// over the digest. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverAuthorizer(digest [32]byte, signature []byte) (Address, error) {
	var recovered Address
	if len(signature) != 65 {
		return recovered, ErrInvalidSignature
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return recovered, ErrInvalidSignature
	}
	recovered = ethcrypto.PubkeyToAddress(*pubKey)
	return recovered, nil
}

// replayMark keys the used-authorization set by the consumed (signer, salt)
// pair. Keying on the signature bytes would let a malleated low-s/high-s
// twin of a consumed signature pass as fresh.
func replayMark(signer Address, salt [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(signer[:], salt[:]))
	return out
}

// authorize runs the signature gate: recovery against the configured signer
// and the replay check. It returns the mark to consume on success; the caller
// stages it together with the ledger mutations.
func (e *Engine[ID]) authorize(identity *Identity, buyer Address, salt *big.Int, signature []byte) ([32]byte, error) {
	var mark [32]byte
	if isZeroAddress(identity.Signer) {
		return mark, ErrSignerNotConfigured
	}
	word, ok := saltWord(salt)
	if !ok {
		return mark, fmt.Errorf("%w: salt wider than 32 bytes", ErrInvalidSignature)
	}
	digest := digestFromWord(buyer, e.address, word)
	recovered, err := RecoverAuthorizer(digest, signature)
	if err != nil {
		return mark, err
	}
	if recovered != identity.Signer {
		return mark, ErrInvalidSignature
	}
	mark = replayMark(identity.Signer, word)
	used, err := e.state.AuthorizationUsed(mark)
	if err != nil {
		return mark, err
	}
	if used {
		return mark, ErrSignatureReplayed
	}
	return mark, nil
}
