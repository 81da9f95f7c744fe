package document

import (
	"context"
	"fmt"
)

// Seed writes cards into w, normalizing each identifier.
func Seed(ctx context.Context, w Writer, cards []Card) error {
	for _, c := range cards {
		id := NormalizeCardID(c.ID)
		if id == "" {
			return fmt.Errorf("seed card: empty identifier")
		}
		if err := w.Put(ctx, id, c.Identity); err != nil {
			return fmt.Errorf("seed card %s: %w", id, err)
		}
	}
	return nil
}
