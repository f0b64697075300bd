package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageSigner produces submission signatures in the wire format of one platform.
// Used by the sign-order tool and tests; the service itself never holds keys.
type MessageSigner interface {
	Platform() Platform
	// SignerID is the value a submission carries as sender_pk
	SignerID() string
	SignMessage(message string) (string, error)
}

// Signer manages ECDSA key pairs for signing orders
// Uses secp256k1 curve (Ethereum-compatible)
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSigner(privateKey), nil
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// Format: "1234..." (64 hex chars, no 0x prefix)
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newSigner(privateKey), nil
}

func newSigner(privateKey *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

func (s *Signer) Platform() Platform { return PlatformEthereum }

// SignerID returns the EIP-55 checksummed address
func (s *Signer) SignerID() string { return s.address.Hex() }

// Address returns the Ethereum address derived from the public key
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix)
// WARNING: Keep this secret! Never expose to users or logs
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// SignMessage personal-signs message and returns 0x-prefixed [R || S || V] hex with V in {27, 28}
func (s *Signer) SignMessage(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// AlgorandSigner holds an Ed25519 key and signs bytes the way Algorand wallets do
type AlgorandSigner struct {
	privateKey ed25519.PrivateKey
	address    string
}

// GenerateAlgorandKey creates a new random Algorand account
func GenerateAlgorandKey() (*AlgorandSigner, error) {
	return newAlgorandSigner(algocrypto.GenerateAccount().PrivateKey)
}

// FromAlgorandSeedHex creates an AlgorandSigner from a hex-encoded 32-byte seed
func FromAlgorandSeedHex(hexSeed string) (*AlgorandSigner, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return newAlgorandSigner(ed25519.NewKeyFromSeed(seed))
}

func newAlgorandSigner(privateKey ed25519.PrivateKey) (*AlgorandSigner, error) {
	account, err := algocrypto.AccountFromPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &AlgorandSigner{
		privateKey: account.PrivateKey,
		address:    account.Address.String(),
	}, nil
}

func (s *AlgorandSigner) Platform() Platform { return PlatformAlgorand }

// SignerID returns the Algorand address
func (s *AlgorandSigner) SignerID() string { return s.address }

// SeedHex returns the private seed as hex string
// WARNING: Keep this secret! Never expose to users or logs
func (s *AlgorandSigner) SeedHex() string {
	return hex.EncodeToString(s.privateKey.Seed())
}

// SignMessage signs "MX" || message and returns the base64 signature
func (s *AlgorandSigner) SignMessage(message string) (string, error) {
	sig, err := algocrypto.SignBytes(s.privateKey, []byte(message))
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// NewSigner generates a fresh key pair for platform
func NewSigner(platform Platform) (MessageSigner, error) {
	switch platform {
	case PlatformEthereum:
		s, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		return s, nil
	case PlatformAlgorand:
		s, err := GenerateAlgorandKey()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("no signer for platform %s", platform)
	}
}

var (
	_ MessageSigner = (*Signer)(nil)
	_ MessageSigner = (*AlgorandSigner)(nil)
)
