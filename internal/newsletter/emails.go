package newsletter

import (
	"regexp"
	"strings"
)

// addressPattern is an RFC-5322-influenced matcher: dot-atom local part, "@",
// then a multi-label domain or a bracketed IPv4 literal. It is deliberately
// not a full RFC 5322 parser; exotic quoted-string local parts are missed and
// everything that matches is re-checked by ValidateEmail.
const addressPattern = "[a-z0-9!#$%&'*+=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+=?^_`{|}~-]+)*" +
	"@(?:(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?" +
	"|\\[(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\\])"

var (
	addressRe = regexp.MustCompile("(?i)" + addressPattern)
	exactRe   = regexp.MustCompile("(?i)^" + addressPattern + "$")
)

// ValidateEmail performs strict syntax validation of a single address.
// Single-label domains ("foo@bar") are rejected.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 64 || len(domain) > 253 {
		return false
	}

	return exactRe.MatchString(email)
}

// ExtractEmails pulls every e-mail address out of free-form text, regardless
// of how the addresses are separated: commas, semicolons, whitespace, new
// lines, or embedded in prose. Candidates are deduplicated in first-seen
// order, stripped of surrounding quotes, and re-validated; anything the strict
// validator rejects is dropped.
func ExtractEmails(haystack string) []string {
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, match := range addressRe.FindAllString(haystack, -1) {
		email := strings.Trim(match, "'\"")
		if seen[email] {
			continue
		}
		seen[email] = true
		if ValidateEmail(email) {
			out = append(out, email)
		}
	}
	return out
}
