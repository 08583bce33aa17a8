package opf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the opf package.
var (
	// ErrStructure indicates a required element or referenced item is
	// missing from the package document. Returned errors are
	// *StructuralError values that match it with errors.Is.
	ErrStructure = errors.New("opf: invalid package structure")

	// ErrDuplicateID indicates a new manifest item reuses an existing id.
	ErrDuplicateID = errors.New("opf: duplicate manifest id")

	// ErrInvalidUpdate indicates the update request itself is unusable
	// (no anchor id, or an item without id or href).
	ErrInvalidUpdate = errors.New("opf: invalid update")
)

// StructuralError names the element, and optionally the id, that was
// expected but not found.
type StructuralError struct {
	Element string
	ID      string
}

func (e *StructuralError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("opf: %s with id %q not found", e.Element, e.ID)
	}
	return fmt.Sprintf("opf: no %s element found", e.Element)
}

// Is makes errors.Is(err, ErrStructure) hold.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructure
}
