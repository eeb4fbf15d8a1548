package domain

import (
	"strings"
	"testing"
)

func TestValidateTTL(t *testing.T) {
	cases := map[string]struct {
		ttl     int
		max     int
		wantErr bool
	}{
		"zero rejected":       {ttl: 0, max: 1440, wantErr: true},
		"one accepted":        {ttl: 1, max: 1440, wantErr: false},
		"at max accepted":     {ttl: 1440, max: 1440, wantErr: false},
		"over max rejected":   {ttl: 1441, max: 1440, wantErr: true},
		"negative rejected":   {ttl: -5, max: 1440, wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateTTL(tc.ttl, tc.max)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error for ttl=%d max=%d", tc.ttl, tc.max)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	cases := map[string]struct {
		id      string
		wantErr bool
	}{
		"valid":                {id: "ses_abcd", wantErr: false},
		"too short suffix":     {id: "ses_abc", wantErr: true},
		"missing prefix":       {id: "abcd1234", wantErr: true},
		"invalid characters":   {id: "ses_abc-123", wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateSessionID(tc.id)
			if tc.wantErr != (err != nil) {
				t.Fatalf("ValidateSessionID(%q) error=%v, wantErr=%v", tc.id, err, tc.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	cases := map[string]struct {
		name    string
		wantErr bool
	}{
		"valid":            {name: "gk_abc123", wantErr: false},
		"missing prefix":   {name: "abc123", wantErr: true},
		"underscore body":  {name: "gk_abc_123", wantErr: true},
		"too long":         {name: "gk_" + strings.Repeat("a", 61), wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateUsername(tc.name)
			if tc.wantErr != (err != nil) {
				t.Fatalf("ValidateUsername(%q) error=%v, wantErr=%v", tc.name, err, tc.wantErr)
			}
		})
	}
}

func TestValidateReason(t *testing.T) {
	ok := make([]byte, 256)
	tooLong := make([]byte, 257)
	if err := ValidateReason(string(ok)); err != nil {
		t.Fatalf("expected 256 chars to be accepted, got %v", err)
	}
	if err := ValidateReason(string(tooLong)); err == nil {
		t.Fatalf("expected 257 chars to be rejected")
	}
	if err := ValidateReason(""); err != nil {
		t.Fatalf("expected an empty reason to be accepted, got %v", err)
	}
}

func TestValidateCorrelationID(t *testing.T) {
	if err := ValidateCorrelationID("c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8"); err != nil {
		t.Fatalf("expected a valid UUID to pass, got %v", err)
	}
	if err := ValidateCorrelationID("not-a-uuid"); err == nil {
		t.Fatalf("expected a non-UUID string to be rejected")
	}
}
