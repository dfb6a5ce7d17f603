package dedup

import (
	"testing"

	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Milk", "milk"},
		{"  Milk ", "milk"},
		{"Whole   Milk", "whole milk"},
		{"\tWHOLE\nMILK ", "whole milk"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindMatchProposesMergedQuantity(t *testing.T) {
	existing := []Entry{
		{ID: "a", Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 2, Status: quantity.StatusPending},
	}
	c := Candidate{Name: "Milk ", Unit: "l", CategoryID: "dairy", Quantity: 1}

	m := FindMatch(c, existing)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.ExistingID != "a" {
		t.Errorf("existing id = %q, want %q", m.ExistingID, "a")
	}
	if m.ExistingQuantity != 2 || m.CandidateQuantity != 1 {
		t.Errorf("quantities = (%v, %v), want (2, 1)", m.ExistingQuantity, m.CandidateQuantity)
	}
	if m.MergedQuantity != 3 {
		t.Errorf("merged quantity = %v, want 3", m.MergedQuantity)
	}
}

func TestFindMatchRequiresAllThreeKeys(t *testing.T) {
	existing := []Entry{
		{ID: "a", Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 2, Status: quantity.StatusPending},
	}

	tests := []struct {
		name string
		c    Candidate
	}{
		{"different unit", Candidate{Name: "milk", Unit: "gal", CategoryID: "dairy", Quantity: 1}},
		{"different category", Candidate{Name: "milk", Unit: "l", CategoryID: "beverages", Quantity: 1}},
		{"different name", Candidate{Name: "oat milk", Unit: "l", CategoryID: "dairy", Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m := FindMatch(tt.c, existing); m != nil {
				t.Errorf("expected no match, got %+v", m)
			}
		})
	}
}

func TestFindMatchSkipsCancelledItems(t *testing.T) {
	existing := []Entry{
		{ID: "a", Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 2, Status: quantity.StatusCancelled},
	}
	c := Candidate{Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 1}

	if m := FindMatch(c, existing); m != nil {
		t.Errorf("expected no match against cancelled item, got %+v", m)
	}
}

func TestFindMatchProductRefBeatsName(t *testing.T) {
	existing := []Entry{
		{ID: "a", Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 2, Status: quantity.StatusPending},
		{ID: "b", Name: "Milch", Unit: "l", CategoryID: "dairy", ProductRef: "prod-7", Quantity: 4, Status: quantity.StatusPending},
	}
	// Name would match item a, but the shared product reference wins.
	c := Candidate{Name: "milk", Unit: "l", CategoryID: "dairy", ProductRef: "prod-7", Quantity: 1}

	m := FindMatch(c, existing)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.ExistingID != "b" {
		t.Errorf("existing id = %q, want product-ref match %q", m.ExistingID, "b")
	}
	if m.MergedQuantity != 5 {
		t.Errorf("merged quantity = %v, want 5", m.MergedQuantity)
	}
}

func TestFindMatchProductRefDiffersNamesMatch(t *testing.T) {
	// Same name key but distinct product references still match on name:
	// the name rule is independent of unset or unequal refs on the existing
	// side only when the candidate carries no ref at all.
	existing := []Entry{
		{ID: "a", Name: "milk", Unit: "l", CategoryID: "dairy", ProductRef: "prod-1", Quantity: 2, Status: quantity.StatusPending},
	}
	c := Candidate{Name: "milk", Unit: "l", CategoryID: "dairy", Quantity: 1}

	m := FindMatch(c, existing)
	if m == nil {
		t.Fatal("expected a name-based match")
	}
	if m.ExistingID != "a" {
		t.Errorf("existing id = %q, want %q", m.ExistingID, "a")
	}
}
