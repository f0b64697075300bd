package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
)

// AlgorandVerifier verifies signatures produced by the ledger's byte-signing routine:
// signature = base64(Ed25519("MX" || message)), signer = Algorand address
type AlgorandVerifier struct{}

func (AlgorandVerifier) Verify(message, signature, claimedSigner string) bool {
	pk, err := DecodeAlgorandAddress(claimedSigner)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	// VerifyBytes adds the "MX" domain prefix
	return algocrypto.VerifyBytes(pk, []byte(message), sig)
}

// DecodeAlgorandAddress returns the Ed25519 public key encoded in addr,
// rejecting addresses whose checksum does not match
func DecodeAlgorandAddress(addr string) (ed25519.PublicKey, error) {
	a, err := algotypes.DecodeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid algorand address: %w", err)
	}
	return ed25519.PublicKey(a[:]), nil
}

// EncodeAlgorandAddress renders a public key as a checksummed Algorand address
func EncodeAlgorandAddress(pk ed25519.PublicKey) string {
	var a algotypes.Address
	copy(a[:], pk)
	return a.String()
}
