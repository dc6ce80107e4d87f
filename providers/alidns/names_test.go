package alidns

import (
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDetermineDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"example.com.", "example.com"},
		{"Example.COM", "Example.COM"},
		{"xn--rhq34a65tw32a.com", "你好世界.com"},
		{"foo.xn--rhq34a65tw32a.com.", "foo.你好世界.com"},
		{"你好世界.com", "你好世界.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, DetermineDomain(tt.in), tt.want)
		})
	}
}

func TestDetermineRecordName(t *testing.T) {
	domain, name := DetermineRecordName("xn--rhq34a65tw32a.com", "_acme-challenge.print.xn--rhq34a65tw32a.com")

	assert.Equal(t, domain, "你好世界.com")
	assert.Equal(t, name, "_acme-challenge.print.你好世界.com")
}

func TestDetermineRR(t *testing.T) {
	tests := []struct {
		name       string
		zone       string
		recordName string
		want       string
	}{
		{"subdomain", "foo.bar.example.com", "test.foo.bar.example.com", "test"},
		{"challenge", "example.com", "_acme-challenge.example.com", "_acme-challenge"},
		{"nested", "example.com", "_acme-challenge.a.b.example.com", "_acme-challenge.a.b"},
		{"apex", "example.com", "example.com", "@"},
		{"trailing dot", "example.com", "_acme-challenge.example.com.", "_acme-challenge"},
		{"idn", "你好世界.com", "_acme-challenge.print.xn--rhq34a65tw32a.com", "_acme-challenge.print"},
		{"record case kept", "example.com", "_ACME-Challenge.Example.com", "_ACME-Challenge"},
		{"zone case ignored", "Example.COM", "_acme-challenge.www.example.com", "_acme-challenge.www"},
		{"apex mixed case", "example.com", "EXAMPLE.com.", "@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetermineRR(tt.zone, tt.recordName)
			assert.NilError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestDetermineRR_OutsideZone(t *testing.T) {
	tests := []struct {
		name       string
		zone       string
		recordName string
	}{
		{"other zone", "example.com", "_acme-challenge.example.org"},
		{"not dot bounded", "example.com", "_acme-challenge.notexample.com"},
		{"parent of zone", "sub.example.com", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetermineRR(tt.zone, tt.recordName)
			assert.Assert(t, errors.Is(err, ErrRecordOutsideZone), "got %v", err)
		})
	}
}

func TestDetermineRR_RoundTrip(t *testing.T) {
	tests := []struct {
		zone string
		name string
	}{
		{"example.com", "_acme-challenge.example.com"},
		{"example.com", "_acme-challenge.www.example.com"},
		{"example.com", "a.b.c.example.com"},
		{"example.com", "_ACME-Challenge.Example.com"},
		{"Example.com", "_ACME-Challenge.Example.com"},
		{"你好世界.com", "_acme-challenge.Print.你好世界.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, err := DetermineRR(tt.zone, tt.name)
			assert.NilError(t, err)
			assert.Assert(t, strings.HasPrefix(tt.name, rr+"."), "rr %q does not keep the case of %q", rr, tt.name)
			assert.Assert(t, strings.EqualFold(rr+"."+tt.zone, tt.name), "rr %q + zone %q != %q", rr, tt.zone, tt.name)
		})
	}
}

func TestDetermineRR_ZoneCasePreserved(t *testing.T) {
	rr, err := DetermineRR("example.com", "_ACME-Challenge.Example.com")
	assert.NilError(t, err)
	assert.Equal(t, rr+".Example.com", "_ACME-Challenge.Example.com")
}
