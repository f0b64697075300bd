package crypto

// Platform identifies the ledger whose signature scheme authorizes a submission
type Platform uint8

const (
	PlatformUnsupported Platform = iota
	PlatformEthereum
	PlatformAlgorand
)

// ParsePlatform maps a wire name to a Platform.
// Names are case-sensitive; anything unknown is PlatformUnsupported.
func ParsePlatform(name string) Platform {
	switch name {
	case "Ethereum":
		return PlatformEthereum
	case "Algorand":
		return PlatformAlgorand
	default:
		return PlatformUnsupported
	}
}

func (p Platform) String() string {
	switch p {
	case PlatformEthereum:
		return "Ethereum"
	case PlatformAlgorand:
		return "Algorand"
	default:
		return "Unsupported"
	}
}

// Supported reports whether a verifier exists for p
func (p Platform) Supported() bool {
	_, ok := defaultRegistry[p]
	return ok
}
