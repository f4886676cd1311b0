package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"agency_listings/models"
)

func TestKey_PrefersID(t *testing.T) {
	l := models.Listing{"ID": json.Number("42"), "Address": "1 Main Street"}
	if got := Key(l); got != "42" {
		t.Fatalf("expected 42, got %s", got)
	}
}

func TestKey_FallsBackToFingerprint(t *testing.T) {
	a := models.Listing{"Address": "123 Sunset Boulevard", "City": "Los Angeles", "Price": "$1,000"}
	b := models.Listing{"Address": "123  sunset blvd.", "City": "los angeles", "Price": "$1,000"}

	ka, kb := Key(a), Key(b)
	if !strings.HasPrefix(ka, "fp:") {
		t.Fatalf("expected fingerprint key, got %s", ka)
	}
	if ka != kb {
		t.Fatalf("expected equal keys for equivalent addresses: %s vs %s", ka, kb)
	}

	c := models.Listing{"Address": "125 Sunset Boulevard", "City": "Los Angeles", "Price": "$1,000"}
	if Key(c) == ka {
		t.Fatal("expected different key for different address")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("  9000 Sunset Boulevard, Suite 100 ")
	if got != "9000 sunset blvd ste 100" {
		t.Fatalf("unexpected normalized address %q", got)
	}
}

func TestIdentifiable(t *testing.T) {
	tests := []struct {
		name    string
		listing models.Listing
		want    bool
	}{
		{"id", models.Listing{"ID": json.Number("7")}, true},
		{"address only", models.Listing{"Address": "1 Main St"}, true},
		{"price only", models.Listing{"Price": "$900"}, true},
		{"nothing", models.Listing{"Status": "Active", "IsRental": true}, false},
		{"blank address", models.Listing{"Address": "   "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identifiable(tt.listing); got != tt.want {
				t.Fatalf("Identifiable() = %v, want %v", got, tt.want)
			}
		})
	}
}
