package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"
)

const testMessage = `{"sender_pk": "x", "buy_amount": 1.5, "platform": "Ethereum"}`

// Algorand addresses are 58 base32 characters
const algorandAddressLen = 58

// withRecoveryByte returns sig with its final byte replaced by v
func withRecoveryByte(t *testing.T, sig string, v byte) string {
	t.Helper()
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		t.Fatalf("failed to decode signature: %v", err)
	}
	raw[len(raw)-1] = v
	return "0x" + hex.EncodeToString(raw)
}

func TestEthereumVerify(t *testing.T) {
	signer, _ := GenerateKey()
	other, _ := GenerateKey()

	sig, err := signer.SignMessage(testMessage)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	v := EthereumVerifier{}

	if !v.Verify(testMessage, sig, signer.SignerID()) {
		t.Error("valid signature should verify")
	}

	// Same bytes without 0x prefix
	if !v.Verify(testMessage, strings.TrimPrefix(sig, "0x"), signer.SignerID()) {
		t.Error("signature without 0x prefix should verify")
	}

	if v.Verify(testMessage, sig, other.SignerID()) {
		t.Error("signature should not verify for a different address")
	}

	if v.Verify(testMessage+" ", sig, signer.SignerID()) {
		t.Error("signature should not verify for a different message")
	}

	// Comparison is exact: a lowercased address is not the checksummed one
	if v.Verify(testMessage, sig, strings.ToLower(signer.SignerID())) {
		t.Error("lowercase address should not match checksummed recovery")
	}
}

func TestEthereumVerifyRecoveryByte(t *testing.T) {
	signer, _ := GenerateKey()
	sig, err := signer.SignMessage(testMessage)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	raw, _ := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	walletV := raw[len(raw)-1] // 27 or 28

	tests := []struct {
		name string
		v    byte
		want bool
	}{
		{"wallet form", walletV, true},
		{"raw form", walletV - 27, true},
		{"other parity", 27 + (28 - walletV), false},
		{"v 29", 29, false},
		{"v 2", 2, false},
	}

	v := EthereumVerifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Verify(testMessage, withRecoveryByte(t, sig, tt.v), signer.SignerID())
			if got != tt.want {
				t.Errorf("Verify() with v=%d = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestEthereumVerifyMalformed(t *testing.T) {
	signer, _ := GenerateKey()
	sig, _ := signer.SignMessage(testMessage)

	tests := []struct {
		name string
		sig  string
	}{
		{"empty", ""},
		{"not hex", "0xzz"},
		{"short", sig[:40]},
		{"long", sig + "00"},
		{"bad recovery id", sig[:len(sig)-2] + "05"},
	}

	v := EthereumVerifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v.Verify(testMessage, tt.sig, signer.SignerID()) {
				t.Errorf("malformed signature %q verified", tt.sig)
			}
		})
	}
}

func TestRecoverPersonalSigner(t *testing.T) {
	signer, _ := GenerateKey()
	sig, _ := signer.SignMessage("Hello, order book!")

	addr, err := RecoverPersonalSigner("Hello, order book!", sig)
	if err != nil {
		t.Fatalf("failed to recover: %v", err)
	}
	if addr != signer.Address() {
		t.Errorf("recovered address = %s, want %s", addr.Hex(), signer.Address().Hex())
	}
}

func TestAlgorandVerify(t *testing.T) {
	signer, _ := GenerateAlgorandKey()
	other, _ := GenerateAlgorandKey()

	sig, err := signer.SignMessage(testMessage)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	v := AlgorandVerifier{}

	if !v.Verify(testMessage, sig, signer.SignerID()) {
		t.Error("valid signature should verify")
	}

	if v.Verify(testMessage, sig, other.SignerID()) {
		t.Error("signature should not verify for a different key")
	}

	if v.Verify(testMessage+" ", sig, signer.SignerID()) {
		t.Error("signature should not verify for a different message")
	}
}

func TestAlgorandVerifyRequiresBytesPrefix(t *testing.T) {
	signer, _ := GenerateAlgorandKey()

	// A bare Ed25519 signature over the message (no "MX") is a different scheme
	bare := base64.StdEncoding.EncodeToString(ed25519.Sign(ed25519.PrivateKey(signer.privateKey), []byte(testMessage)))
	if (AlgorandVerifier{}).Verify(testMessage, bare, signer.SignerID()) {
		t.Error("unprefixed signature verified")
	}

	sig, _ := signer.SignMessage(testMessage)
	if (AlgorandVerifier{}).Verify("MX"+testMessage, sig, signer.SignerID()) {
		t.Error("signature must bind to the prefixed message only")
	}
}

func TestAlgorandVerifyIndependentSigner(t *testing.T) {
	signer, _ := GenerateAlgorandKey()

	// A second Ed25519 implementation signing "MX" || message must verify
	sig := ed25519.Sign(ed25519.PrivateKey(signer.privateKey), append([]byte("MX"), testMessage...))
	if !(AlgorandVerifier{}).Verify(testMessage, base64.StdEncoding.EncodeToString(sig), signer.SignerID()) {
		t.Error("independently produced signature did not verify")
	}
}

func TestAlgorandVerifyMalformed(t *testing.T) {
	signer, _ := GenerateAlgorandKey()
	sig, _ := signer.SignMessage(testMessage)
	addr := signer.SignerID()

	// Alter a key character so the checksum no longer matches
	flipped := byte('A')
	if addr[10] == 'A' {
		flipped = 'B'
	}
	badChecksum := addr[:10] + string(flipped) + addr[11:]

	tests := []struct {
		name   string
		sig    string
		signer string
	}{
		{"not base64", "!!!", addr},
		{"short signature", base64.StdEncoding.EncodeToString([]byte("short")), addr},
		{"empty address", sig, ""},
		{"ethereum address", sig, "0x0000000000000000000000000000000000000001"},
		{"bad checksum", sig, badChecksum},
		{"not base32", sig, strings.Repeat("1", algorandAddressLen)},
	}

	v := AlgorandVerifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v.Verify(testMessage, tt.sig, tt.signer) {
				t.Error("malformed input verified")
			}
		})
	}
}

func TestAlgorandAddressRoundTrip(t *testing.T) {
	signer, _ := GenerateAlgorandKey()

	pk, err := DecodeAlgorandAddress(signer.SignerID())
	if err != nil {
		t.Fatalf("failed to decode address: %v", err)
	}
	if got := EncodeAlgorandAddress(pk); got != signer.SignerID() {
		t.Errorf("address = %s, want %s", got, signer.SignerID())
	}
	if len(signer.SignerID()) != algorandAddressLen {
		t.Errorf("address length = %d, want %d", len(signer.SignerID()), algorandAddressLen)
	}
}

func TestRegistryDispatch(t *testing.T) {
	eth, _ := GenerateKey()
	algo, _ := GenerateAlgorandKey()
	ethSig, _ := eth.SignMessage(testMessage)
	algoSig, _ := algo.SignMessage(testMessage)

	if !Verify(PlatformEthereum, testMessage, ethSig, eth.SignerID()) {
		t.Error("ethereum signature should verify under Ethereum")
	}
	if !Verify(PlatformAlgorand, testMessage, algoSig, algo.SignerID()) {
		t.Error("algorand signature should verify under Algorand")
	}

	// Cross-platform never verifies
	if Verify(PlatformAlgorand, testMessage, ethSig, eth.SignerID()) {
		t.Error("ethereum signature verified under Algorand")
	}
	if Verify(PlatformEthereum, testMessage, algoSig, algo.SignerID()) {
		t.Error("algorand signature verified under Ethereum")
	}

	// Unsupported platform rejects even correctly signed input
	if Verify(PlatformUnsupported, testMessage, ethSig, eth.SignerID()) {
		t.Error("unsupported platform verified")
	}
	if Verify(ParsePlatform("Bitcoin"), testMessage, ethSig, eth.SignerID()) {
		t.Error("Bitcoin verified")
	}
}

func TestRegistryExtension(t *testing.T) {
	r := DefaultRegistry()
	delete(r, PlatformAlgorand)

	algo, _ := GenerateAlgorandKey()
	sig, _ := algo.SignMessage(testMessage)

	if r.Verify(PlatformAlgorand, testMessage, sig, algo.SignerID()) {
		t.Error("removed strategy should not verify")
	}
	// The package registry is untouched
	if !Verify(PlatformAlgorand, testMessage, sig, algo.SignerID()) {
		t.Error("default registry was mutated")
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name string
		want Platform
	}{
		{"Ethereum", PlatformEthereum},
		{"Algorand", PlatformAlgorand},
		{"ethereum", PlatformUnsupported},
		{"Bitcoin", PlatformUnsupported},
		{"", PlatformUnsupported},
	}
	for _, tt := range tests {
		if got := ParsePlatform(tt.name); got != tt.want {
			t.Errorf("ParsePlatform(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}

	if !PlatformEthereum.Supported() || !PlatformAlgorand.Supported() || PlatformUnsupported.Supported() {
		t.Error("Supported() mismatch")
	}
}
