package refine

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/seiri/internal/models"
)

// ErrRowOutOfRange is returned when an edit targets a row that does not exist.
var ErrRowOutOfRange = errors.New("refine: row out of range")

// Edit sets the processed value of one row by hand.
func Edit(ref *models.Refinement, row int, value string) error {
	if row < 0 || row >= len(ref.Processed) {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, len(ref.Processed))
	}
	ref.Processed[row] = value
	ref.MarkEdited(row)
	ref.Recount()
	ref.UpdatedAt = time.Now().UTC()
	return nil
}

// Rename replaces every processed value equal to from with to and returns the
// number of rows changed. Groups whose canonical value is from are relabelled too.
func Rename(ref *models.Refinement, from, to string) int {
	if from == to {
		return 0
	}
	n := 0
	for i, v := range ref.Processed {
		if v != from {
			continue
		}
		ref.Processed[i] = to
		ref.MarkEdited(i)
		n++
	}
	for i := range ref.Groups {
		if ref.Groups[i].Canonical == from {
			ref.Groups[i].Canonical = to
		}
	}
	if n > 0 {
		ref.Recount()
		ref.UpdatedAt = time.Now().UTC()
	}
	return n
}
