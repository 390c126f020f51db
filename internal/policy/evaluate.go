package policy

import (
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeWallet canonicalizes a hex wallet address to its EIP-55
// checksummed form. Reports false for anything that is not an address.
func NormalizeWallet(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}

// EvaluateSender decides whether a counterparty may pay this service under
// the group's sender lists. The block list wins over the allow list; a
// present, non-empty allow list is exhaustive; absent lists allow.
func EvaluateSender(g *Group, walletAddress, networkOrigin string) Decision {
	return evaluateLists(g.Name, g.AllowedSenders, g.BlockedSenders, walletAddress, networkOrigin)
}

// EvaluateRecipient is the outgoing-side mirror of EvaluateSender, applied
// to the group's recipient lists before this service pays a counterparty.
func EvaluateRecipient(g *Group, walletAddress, networkOrigin string) Decision {
	return evaluateLists(g.Name, g.AllowedRecipients, g.BlockedRecipients, walletAddress, networkOrigin)
}

func evaluateLists(group string, allowed, blocked []string, walletAddress, networkOrigin string) Decision {
	for _, entry := range blocked {
		if matchIdentity(entry, walletAddress, networkOrigin) {
			return deny(group, "counterparty is blocked")
		}
	}

	if len(allowed) > 0 {
		for _, entry := range allowed {
			if matchIdentity(entry, walletAddress, networkOrigin) {
				return allow(group)
			}
		}
		return deny(group, "counterparty is not on the allow list")
	}

	return allow(group)
}

// matchIdentity compares a list entry against the transfer context. Hex
// entries match the wallet address exactly after checksum normalization;
// anything else is treated as a network origin or bare domain.
func matchIdentity(entry, walletAddress, networkOrigin string) bool {
	if normalized, ok := NormalizeWallet(entry); ok {
		wallet, walletOK := NormalizeWallet(walletAddress)
		return walletOK && wallet == normalized
	}
	return matchOrigin(entry, networkOrigin)
}

// matchOrigin compares scheme+host (and port, when the entry names one).
// An entry without a scheme matches any scheme on the same host.
func matchOrigin(entry, networkOrigin string) bool {
	if networkOrigin == "" {
		return false
	}

	origin, err := url.Parse(networkOrigin)
	if err != nil || origin.Host == "" {
		return false
	}

	raw := strings.TrimSpace(entry)
	schemeless := !strings.Contains(raw, "://")
	if schemeless {
		raw = "//" + raw
	}
	target, err := url.Parse(raw)
	if err != nil || target.Host == "" {
		return false
	}

	if !schemeless && !strings.EqualFold(target.Scheme, origin.Scheme) {
		return false
	}
	if !strings.EqualFold(target.Hostname(), origin.Hostname()) {
		return false
	}
	if target.Port() != "" && target.Port() != origin.Port() {
		return false
	}
	return true
}
