// Package dedup matches a candidate new item against a list's existing
// items and proposes a merge quantity. It never merges on its own: the
// caller decides with an explicit Resolution.
package dedup

import (
	"strings"

	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// Resolution is the caller's decision for a duplicate match.
type Resolution string

const (
	// Merge replaces the existing item's total with the merged quantity
	// and discards the candidate as a separate item.
	Merge Resolution = "merge"
	// KeepBoth inserts the candidate as a new item.
	KeepBoth Resolution = "keep_both"
	// Cancel drops the candidate entirely.
	Cancel Resolution = "cancel"
)

// Candidate is the item about to be added.
type Candidate struct {
	Name       string
	Unit       string
	CategoryID string
	ProductRef string
	Quantity   float64
}

// Entry is the view of an existing item the resolver compares against.
type Entry struct {
	ID         string
	Name       string
	Unit       string
	CategoryID string
	ProductRef string
	Quantity   float64
	Status     quantity.Status
}

// Match describes a detected duplicate and the proposed merge.
type Match struct {
	ExistingID        string  `json:"existing_id"`
	ExistingName      string  `json:"existing_name"`
	ExistingQuantity  float64 `json:"existing_quantity"`
	CandidateQuantity float64 `json:"candidate_quantity"`
	MergedQuantity    float64 `json:"merged_quantity"`
}

// FindMatch returns the first existing item the candidate duplicates, or nil.
// Cancelled items never match. An explicit catalog product reference matches
// regardless of name (localization may rename the same product); otherwise
// the normalized name, unit and category must all be equal.
func FindMatch(c Candidate, existing []Entry) *Match {
	key := NormalizeName(c.Name)

	// Product-reference match takes precedence over the name key.
	if c.ProductRef != "" {
		for _, e := range existing {
			if e.Status == quantity.StatusCancelled {
				continue
			}
			if e.ProductRef != "" && e.ProductRef == c.ProductRef {
				return newMatch(e, c)
			}
		}
	}

	for _, e := range existing {
		if e.Status == quantity.StatusCancelled {
			continue
		}
		if NormalizeName(e.Name) == key && e.Unit == c.Unit && e.CategoryID == c.CategoryID {
			return newMatch(e, c)
		}
	}
	return nil
}

func newMatch(e Entry, c Candidate) *Match {
	return &Match{
		ExistingID:        e.ID,
		ExistingName:      e.Name,
		ExistingQuantity:  e.Quantity,
		CandidateQuantity: c.Quantity,
		MergedQuantity:    e.Quantity + c.Quantity,
	}
}

// NormalizeName trims, collapses internal whitespace, and case-folds an item
// name into its identity key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
