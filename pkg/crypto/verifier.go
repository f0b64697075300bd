package crypto

// SchemeVerifier checks a signature for one platform's signing scheme.
// Implementations must return false, never panic, on malformed signatures or keys.
type SchemeVerifier interface {
	Verify(message, signature, claimedSigner string) bool
}

// Registry dispatches verification to the strategy registered for a platform
type Registry map[Platform]SchemeVerifier

var defaultRegistry = Registry{
	PlatformEthereum: EthereumVerifier{},
	PlatformAlgorand: AlgorandVerifier{},
}

// DefaultRegistry returns a copy of the built-in verifiers (Ethereum, Algorand)
func DefaultRegistry() Registry {
	r := make(Registry, len(defaultRegistry))
	for p, v := range defaultRegistry {
		r[p] = v
	}
	return r
}

// Verify returns true iff signature is a valid signature of message by claimedSigner
// under the scheme registered for platform. Unregistered platforms never verify.
func (r Registry) Verify(platform Platform, message, signature, claimedSigner string) bool {
	v, ok := r[platform]
	if !ok || v == nil {
		return false
	}
	return v.Verify(message, signature, claimedSigner)
}

// Verify checks a signature against the built-in registry
func Verify(platform Platform, message, signature, claimedSigner string) bool {
	return defaultRegistry.Verify(platform, message, signature, claimedSigner)
}
