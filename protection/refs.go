package protection

import (
	"math/rand"
	"strings"
	"unicode"
)

// schemeInitials derives the short prefix used in protection references from a
// scheme's display name: one letter per word for multi-word names ("Tenancy
// Deposit Scheme" -> "TDS"), the first two letters otherwise ("Zero" -> "ZE").
func schemeInitials(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})

	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) {
				b.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}

	initials := b.String()
	if len(initials) >= 2 {
		return initials
	}

	letters := make([]rune, 0, 2)
	for _, r := range name {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 2 {
				break
			}
		}
	}
	if len(letters) == 0 {
		return "DP"
	}
	return string(letters)
}

// randomDigits returns n decimal digits. The result is display sugar on top of
// uuid-keyed rows, so collisions are tolerable.
func randomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// protectionRef builds the scheme-issued style reference, e.g. "TDS-48213907".
func protectionRef(schemeName string, digits func(int) string) string {
	return schemeInitials(schemeName) + "-" + digits(8)
}

// disputeRef builds a human-readable dispute reference, e.g. "DISP-04561".
func disputeRef(digits func(int) string) string {
	return "DISP-" + digits(5)
}

// certificatePath is the deterministic location of the generated certificate
// document for a protection.
func certificatePath(tenancyID, ref string) string {
	return "/certificates/deposits/" + tenancyID + "/" + ref + ".pdf"
}
