// Package idn converts internationalized domain names between their
// ASCII-compatible (punycode) and Unicode spellings.
//
// Alidns stores zones under their Unicode name, while ACME clients hand us the
// ACE form. Conversion is label-by-label and tolerant: labels that are not ACE,
// or that fail to decode, are returned untouched so names such as
// "_acme-challenge" or "*" survive the round trip.
package idn

import (
	"strings"

	"golang.org/x/net/idna"
)

// acePrefix marks a punycode-encoded label.
const acePrefix = "xn--"

// IsACE reports whether domain contains at least one ACE label.
// The check is purely syntactic and does not validate the encoding.
func IsACE(domain string) bool {
	return strings.HasPrefix(domain, acePrefix) || strings.Contains(domain, "."+acePrefix)
}

// ToUnicode decodes every ACE label of domain into Unicode.
// Labels that cannot be decoded are passed through unchanged.
func ToUnicode(domain string) string {
	labels := strings.Split(domain, ".")
	for i, label := range labels {
		labels[i] = labelToUnicode(label)
	}
	return strings.Join(labels, ".")
}

// ToASCII encodes every non-ASCII label of domain into its ACE form.
// Labels that cannot be encoded are passed through unchanged.
func ToASCII(domain string) string {
	labels := strings.Split(domain, ".")
	for i, label := range labels {
		if ascii, err := idna.Punycode.ToASCII(label); err == nil {
			labels[i] = ascii
		}
	}
	return strings.Join(labels, ".")
}

// Equal reports whether a and b name the same domain, ignoring whether
// either side is spelled in ACE or Unicode form.
func Equal(a, b string) bool {
	if a == b {
		return true
	}
	return ToUnicode(a) == ToUnicode(b)
}

func labelToUnicode(label string) string {
	if !strings.HasPrefix(label, acePrefix) {
		return label
	}
	decoded, err := idna.Punycode.ToUnicode(label)
	if err != nil {
		return label
	}
	return decoded
}
