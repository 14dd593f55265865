package lint

import (
	"regexp"
	"strings"
)

// Mode is the declared contract category driving conditional rules. The
// zero value is ModeUnknown, which falls back to content inference where a
// rule needs a decision.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeP2PKH
	ModeMultisig
	ModeMultisigSimple
	ModeEscrow
	ModeTimelock
	ModeStateless
	ModeVesting
	ModeStateful
	ModeCovenant
	ModeVault
	ModeToken
	ModeMinting
	ModeDistribution
	ModePayout
	ModeSplit
	ModeBurn
)

var modeNames = map[Mode]string{
	ModeUnknown:        "",
	ModeP2PKH:          "p2pkh",
	ModeMultisig:       "multisig",
	ModeMultisigSimple: "multisig_simple_spend",
	ModeEscrow:         "escrow",
	ModeTimelock:       "timelock",
	ModeStateless:      "stateless",
	ModeVesting:        "vesting",
	ModeStateful:       "stateful",
	ModeCovenant:       "covenant",
	ModeVault:          "vault",
	ModeToken:          "token",
	ModeMinting:        "minting",
	ModeDistribution:   "distribution",
	ModePayout:         "payout",
	ModeSplit:          "split",
	ModeBurn:           "burn",
}

func (m Mode) String() string { return modeNames[m] }

// ParseMode maps a free-form category tag onto the closed mode set.
// Unrecognized tags become ModeUnknown rather than an error so callers can
// defer to content inference.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p2pkh":
		return ModeP2PKH
	case "multisig":
		return ModeMultisig
	case "multisig_simple_spend":
		return ModeMultisigSimple
	case "escrow":
		return ModeEscrow
	case "timelock":
		return ModeTimelock
	case "stateless":
		return ModeStateless
	case "vesting":
		return ModeVesting
	case "stateful":
		return ModeStateful
	case "covenant":
		return ModeCovenant
	case "vault":
		return ModeVault
	case "token":
		return ModeToken
	case "minting":
		return ModeMinting
	case "distribution":
		return ModeDistribution
	case "payout":
		return ModePayout
	case "split":
		return ModeSplit
	case "burn":
		return ModeBurn
	default:
		return ModeUnknown
	}
}

var (
	tokenRefRe = regexp.MustCompile(`\b(?:tokenCategory|tokenAmount)\b`)
	selfRefRe  = regexp.MustCompile(`this\.activeBytecode`)
)

// InferMode guesses a category for untagged source. Conservative: prefers
// the weaker category when evidence is ambiguous.
func InferMode(code string) Mode {
	switch {
	case tokenRefRe.MatchString(code):
		return ModeToken
	case selfRefRe.MatchString(code) && strings.Contains(code, "hash256("):
		return ModeStateful
	case selfRefRe.MatchString(code):
		return ModeCovenant
	case strings.Contains(code, "tx.time") || strings.Contains(code, "tx.age"):
		return ModeTimelock
	case strings.Count(code, "pubkey") >= 2 && strings.Contains(code, "checkSig"):
		return ModeMultisig
	default:
		return ModeStateless
	}
}

// anchoringSkipped reports whether the value-anchoring rule is disabled for
// this mode. Stateless and pure signature contracts move no covenant value.
func (m Mode) anchoringSkipped() bool {
	switch m {
	case ModeMultisig, ModeMultisigSimple, ModeTimelock, ModeStateless, ModeUnknown:
		return true
	default:
		return false
	}
}

// selfAnchorPolicy spells out the LNC-008 mode matrix per variant.
type selfAnchorPolicy int

const (
	selfAnchorSkip selfAnchorPolicy = iota
	selfAnchorRequire
	selfAnchorForbid
	selfAnchorInfer
)

func (m Mode) selfAnchor() selfAnchorPolicy {
	switch m {
	case ModeDistribution, ModePayout, ModeSplit, ModeBurn:
		return selfAnchorForbid
	case ModeMultisig, ModeMultisigSimple, ModeP2PKH, ModeStateless, ModeTimelock, ModeEscrow:
		return selfAnchorSkip
	case ModeVesting, ModeStateful, ModeCovenant, ModeVault, ModeToken, ModeMinting:
		return selfAnchorRequire
	default:
		return selfAnchorInfer
	}
}

func (m Mode) frozenStateApplies() bool {
	return m == ModeStateful || m == ModeVesting
}

func (m Mode) mintAuthorityApplies() bool {
	return m == ModeToken || m == ModeMinting
}
