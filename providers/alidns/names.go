package alidns

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/idn"
)

// ApexRR is the relative name Alidns uses for records at the zone apex.
const ApexRR = "@"

// ErrRecordOutsideZone is returned when a record name is not below the zone.
var ErrRecordOutsideZone = errors.New("record name is outside zone")

// DetermineDomain normalizes domain into the spelling Alidns stores zones
// under: no trailing dot, ACE labels decoded to Unicode. Case is kept.
func DetermineDomain(domain string) string {
	return normalizeName(domain)
}

// DetermineRecordName normalizes both the domain and the full record name.
// ACE labels in recordName are decoded one by one; labels that are not
// punycode, like "_acme-challenge", are kept as they are.
func DetermineRecordName(domain, recordName string) (string, string) {
	return normalizeName(domain), normalizeName(recordName)
}

// DetermineRR returns recordName relative to zone, e.g. "test" for
// "test.foo.bar.example.com" under "foo.bar.example.com". A record at the
// apex yields ApexRR. The zone must be a dot-bounded suffix of recordName,
// compared without regard to case; the RR keeps the case of recordName.
func DetermineRR(zone, recordName string) (string, error) {
	zone, name := DetermineRecordName(zone, recordName)

	if strings.EqualFold(name, zone) {
		return ApexRR, nil
	}

	cut := len(name) - len(zone) - 1
	if cut < 1 || name[cut] != '.' || !strings.EqualFold(name[cut+1:], zone) {
		return "", fmt.Errorf("%w: %q is not below %q", ErrRecordOutsideZone, recordName, zone)
	}

	return name[:cut], nil
}

func normalizeName(name string) string {
	name = strings.TrimSuffix(name, ".")
	if idn.IsACE(name) {
		return idn.ToUnicode(name)
	}
	return name
}
