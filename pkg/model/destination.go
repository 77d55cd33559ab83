package model

import "strings"

// Bolt11 invoice prefixes for mainnet, testnet, and regtest.
var bolt11Prefixes = []string{"lnbc", "lntb", "lnbcrt"}

// IsBolt11 reports whether s looks like a bolt11 invoice.
func IsBolt11(s string) bool {
	s = strings.ToLower(s)
	for _, p := range bolt11Prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsLightningAddress reports whether s is an email-style Lightning address.
func IsLightningAddress(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.Contains(s[at+1:], "@")
}

// IsLnurl reports whether s is a bech32-encoded lnurl string.
func IsLnurl(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "lnurl1")
}

// IsPayableDestination reports whether s is in a directly payable form: a
// Lightning address, a bolt11 invoice, an lnurl string, or any of those
// behind a "lightning:" scheme prefix.
func IsPayableDestination(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "lightning:")
	return IsLightningAddress(s) || IsBolt11(s) || IsLnurl(s)
}
