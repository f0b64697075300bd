package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumVerifier verifies personal-sign ("\x19Ethereum Signed Message:\n" + len) signatures
// and compares the recovered checksummed address to the claimed signer
type EthereumVerifier struct{}

// Verify recovers the signer of message and checks it equals claimedSigner exactly.
// claimedSigner must be in EIP-55 checksummed form; a lowercase address does not match.
func (EthereumVerifier) Verify(message, signature, claimedSigner string) bool {
	addr, err := RecoverPersonalSigner(message, signature)
	if err != nil {
		return false
	}
	return addr.Hex() == claimedSigner
}

// RecoverPersonalSigner returns the address that personal-signed message
func RecoverPersonalSigner(message, signature string) (common.Address, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	// Wallets emit V as 27/28; recovery expects 0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %d", sig[64])
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sigBytes))
	}

	return sigBytes, nil
}
