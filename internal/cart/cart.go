// Package cart reduces checkout lines to the summary the verification gate reads.
package cart

import (
	"context"
	"strings"

	dErrors "agegate/pkg/domain-errors"
)

// Line is one scanned item. Price is in the smallest currency unit.
type Line struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Restricted bool   `json:"restricted"`
}

// Summary is immutable for the duration of one verification run.
type Summary struct {
	ItemCount         int   `json:"item_count"`
	TotalAmount       int64 `json:"total_amount"`
	HasRestrictedItem bool  `json:"has_restricted_item"`
}

// Query is the cart store collaborator. Summary is synchronous and has no
// side effects.
type Query interface {
	Summary(ctx context.Context) (Summary, error)
}

// Summarize folds lines into a Summary.
func Summarize(lines []Line) Summary {
	var s Summary
	for _, l := range lines {
		s.ItemCount++
		s.TotalAmount += l.Price
		if l.Restricted {
			s.HasRestrictedItem = true
		}
	}
	return s
}

// Validate rejects carts that cannot be paid for.
func Validate(lines []Line) error {
	if len(lines) == 0 {
		return dErrors.New(dErrors.CodeValidation, "cart is empty")
	}
	for _, l := range lines {
		if strings.TrimSpace(l.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, "item name is required")
		}
		if l.Price < 0 {
			return dErrors.New(dErrors.CodeValidation, "item price must not be negative")
		}
	}
	return nil
}

// StaticQuery serves the lines a terminal submitted with the payment attempt.
type StaticQuery []Line

func (q StaticQuery) Summary(context.Context) (Summary, error) {
	if err := Validate(q); err != nil {
		return Summary{}, err
	}
	return Summarize(q), nil
}
