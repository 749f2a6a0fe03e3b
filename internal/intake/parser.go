// Package intake turns raw inbound messages into ticket field updates:
// structured token parsing, customer mapping, bounce classification, and
// autoreply drafts.
package intake

import (
	"regexp"
	"strings"
)

var (
	siteRe  = regexp.MustCompile(`(?i)\bSITE\s*:\s*([^\r\n]+)`)
	assetRe = regexp.MustCompile(`(?i)\bASSET\s*:\s*([^\r\n]+)`)
)

const maxAssetLen = 140

// ParsedTokens holds the labeled tokens extracted from message text.
type ParsedTokens struct {
	Site  string
	Asset string
}

// ParseTokens extracts the first SITE: and ASSET: tokens from the text.
func ParseTokens(text string) ParsedTokens {
	p := ParsedTokens{
		Site:  firstMatch(siteRe, text),
		Asset: firstMatch(assetRe, text),
	}
	if len(p.Asset) > maxAssetLen {
		p.Asset = p.Asset[:maxAssetLen]
	}
	return p
}

func firstMatch(re *regexp.Regexp, text string) string {
	if text == "" {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
