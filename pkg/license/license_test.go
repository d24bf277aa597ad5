package license

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-license-secret"

func TestGenerateParseRoundTrip(t *testing.T) {
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key, err := Generate(GenerateOptions{
		Tier:             TierEnt,
		Org:              "Acme Corporation",
		DeveloperSeats:   Limited(10),
		StakeholderSeats: Limited(5),
		ExpiresAt:        expires,
		Now:              now,
	}, testSecret)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	wantPrefix := "SNOW-ENT-ACMECORPORATION-10/5-20261231-"
	if len(key) != len(wantPrefix)+8 || key[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("Generate() = %q, want prefix %q + 8 hex chars", key, wantPrefix)
	}

	parsed, err := Parse(key, testSecret, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if parsed.Tier.Normalize() != TierEnt {
		t.Errorf("Tier = %v, want %v", parsed.Tier, TierEnt)
	}
	if parsed.Org != "ACMECORPORATION" {
		t.Errorf("Org = %q, want %q", parsed.Org, "ACMECORPORATION")
	}
	if parsed.DeveloperSeats.IsUnlimited() || parsed.DeveloperSeats.Count() != 10 {
		t.Errorf("DeveloperSeats = %+v, want Limited(10)", parsed.DeveloperSeats)
	}
	if parsed.StakeholderSeats.IsUnlimited() || parsed.StakeholderSeats.Count() != 5 {
		t.Errorf("StakeholderSeats = %+v, want Limited(5)", parsed.StakeholderSeats)
	}
	if parsed.Format != FormatSeatBased {
		t.Errorf("Format = %v, want %v", parsed.Format, FormatSeatBased)
	}
	if !parsed.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", parsed.ExpiresAt, expires)
	}
}

func TestParseFlippedChecksumFails(t *testing.T) {
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	key, err := Generate(GenerateOptions{
		Tier: TierEnt, Org: "Acme", DeveloperSeats: Limited(10), StakeholderSeats: Limited(5),
		ExpiresAt: expires, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	tampered := []byte(key)
	last := tampered[len(tampered)-1]
	if last == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}

	_, err = Parse(string(tampered), testSecret, ParseOptions{})
	if !errors.Is(err, ErrChecksumInvalid) {
		t.Errorf("Parse(tampered) error = %v, want ErrChecksumInvalid", err)
	}
}

func TestParseUnlimitedSeatEncoding(t *testing.T) {
	expires := time.Date(2027, 6, 15, 0, 0, 0, 0, time.UTC)
	key, err := Generate(GenerateOptions{
		Tier: TierPro, Org: "Widgets", DeveloperSeats: UnlimitedLimit(), StakeholderSeats: UnlimitedLimit(),
		ExpiresAt: expires, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	parsed, err := Parse(key, testSecret, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !parsed.DeveloperSeats.IsUnlimited() {
		t.Error("DeveloperSeats should be unlimited")
	}
}

func TestParseOpaqueCustomerKey(t *testing.T) {
	parsed, err := Parse("SNOW-ENT-CUST-AB12CD", testSecret, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(opaque) error: %v", err)
	}
	if parsed.Format != FormatOpaque {
		t.Errorf("Format = %v, want %v", parsed.Format, FormatOpaque)
	}
	if !parsed.DeveloperSeats.IsUnlimited() {
		t.Error("opaque key should be unlimited")
	}
}

func TestParseOpaqueSIKey(t *testing.T) {
	parsed, err := Parse("SNOW-SI-ACME1", testSecret, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(opaque SI) error: %v", err)
	}
	if parsed.Format != FormatOpaque {
		t.Errorf("Format = %v, want %v", parsed.Format, FormatOpaque)
	}
}

func TestParseMalformedKey(t *testing.T) {
	_, err := Parse("not-a-license-key", testSecret, ParseOptions{})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestParseExpiryEnforcement(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, err := Generate(GenerateOptions{
		Tier: TierTeam, Org: "Old", DeveloperSeats: Limited(1), StakeholderSeats: Limited(1),
		ExpiresAt: expires, Now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	// One second past midnight of the expiry date, UTC.
	oneSecondPast := expires.Add(24*time.Hour + time.Second)

	_, err = Parse(key, testSecret, ParseOptions{EnforceExpiry: true, Now: oneSecondPast})
	if !errors.Is(err, ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}

	// Not enforcing expiry should still succeed.
	if _, err := Parse(key, testSecret, ParseOptions{Now: oneSecondPast}); err != nil {
		t.Errorf("Parse without enforcement error: %v", err)
	}
}

func TestGenerateRejectsPastExpiry(t *testing.T) {
	_, err := Generate(GenerateOptions{
		Tier: TierTeam, Org: "Acme", DeveloperSeats: Limited(1), StakeholderSeats: Limited(1),
		ExpiresAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestGenerateRejectsFarFutureExpiry(t *testing.T) {
	_, err := Generate(GenerateOptions{
		Tier: TierTeam, Org: "Acme", DeveloperSeats: Limited(1), StakeholderSeats: Limited(1),
		ExpiresAt: time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestGenerateRejectsEmptyNormalizedOrg(t *testing.T) {
	_, err := Generate(GenerateOptions{
		Tier: TierTeam, Org: "!!!", DeveloperSeats: Limited(1), StakeholderSeats: Limited(1),
		ExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testSecret)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestNormalizeOrg(t *testing.T) {
	cases := map[string]string{
		"Acme Corporation": "ACMECORPORATION",
		"foo-bar_123":      "FOOBAR123",
		"":                 "",
	}
	for in, want := range cases {
		if got := NormalizeOrg(in); got != want {
			t.Errorf("NormalizeOrg(%q) = %q, want %q", in, got, want)
		}
	}
}
