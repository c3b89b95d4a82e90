package redact

import (
	"strings"
	"testing"
)

func TestRedactJSONKeys(t *testing.T) {
	in := `{"cardNumber": "4111111111111111", "cvv": "123", "cardholder": "Jane Doe"}`
	out := Redact(in)

	if strings.Contains(out, "4111111111111111") {
		t.Fatalf("card number leaked: %q", out)
	}
	if !strings.Contains(out, `"cardNumber": "************1111"`) {
		t.Fatalf("card number should keep last 4: %q", out)
	}
	if !strings.Contains(out, `"cvv": "***REDACTED***"`) {
		t.Fatalf("short digit values collapse entirely: %q", out)
	}
	if !strings.Contains(out, `"cardholder": "Jane Doe"`) {
		t.Fatalf("non-sensitive keys must survive: %q", out)
	}
}

func TestRedactXMLKeys(t *testing.T) {
	in := `<Request><CardNumber>4000100011112224</CardNumber><Pin>1234</Pin><Amount>10.00</Amount></Request>`
	out := Redact(in)

	if strings.Contains(out, "4000100011112224") {
		t.Fatalf("card number leaked: %q", out)
	}
	if !strings.Contains(out, "<CardNumber>************2224</CardNumber>") {
		t.Fatalf("expected masked card element: %q", out)
	}
	if !strings.Contains(out, "<Pin>***REDACTED***</Pin>") {
		t.Fatalf("pin must be fully masked: %q", out)
	}
	if !strings.Contains(out, "<Amount>10.00</Amount>") {
		t.Fatalf("amount must survive: %q", out)
	}
}

func TestRedactBareDigitRuns(t *testing.T) {
	out := Redact("charged card 5454545454545454 at the counter")
	if strings.Contains(out, "5454545454545454") {
		t.Fatalf("bare PAN leaked: %q", out)
	}
	if !strings.Contains(out, "************5454") {
		t.Fatalf("expected masked digit run: %q", out)
	}

	// Short and overlong digit runs are not card shaped.
	if got := Redact("order 12345678901 total"); !strings.Contains(got, "12345678901") {
		t.Fatalf("11-digit run should pass through: %q", got)
	}
}

func TestRedactBlankInput(t *testing.T) {
	if got := Redact("   "); got != "" {
		t.Fatalf("blank input should yield empty string, got %q", got)
	}
	if got := Redact(""); got != "" {
		t.Fatalf("empty input should yield empty string, got %q", got)
	}
}

func TestRedactSecretValuesWithoutDigits(t *testing.T) {
	in := `{"apiKey": "abcDEFghij", "token": "tok_live_secret"}`
	out := Redact(in)
	if strings.Contains(out, "abcDEFghij") || strings.Contains(out, "tok_live_secret") {
		t.Fatalf("secret values leaked: %q", out)
	}
	if !strings.Contains(out, `"apiKey": "***REDACTED***"`) {
		t.Fatalf("expected placeholder for apiKey: %q", out)
	}
}

func TestRedactIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"cardNumber": "4111111111111111", "cvv": "999", "pin": "1234"}`,
		`<CardNumber>4000100011112224</CardNumber><SourceKey>k_abc123456789012</SourceKey>`,
		"bare pan 4111111111111111 in text",
		`{"token": "no-digits-here"}`,
	}
	for _, in := range inputs {
		once := Redact(in)
		twice := Redact(once)
		if once != twice {
			t.Fatalf("redaction not stable for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestMaskPAN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"4111111111111111", "************1111"},
		{"4111-1111-1111-1111", "************1111"},
		{"12345", "***REDACTED***"},
		{"", "***REDACTED***"},
	}
	for _, tc := range cases {
		if got := maskPAN(tc.in); got != tc.want {
			t.Fatalf("maskPAN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
