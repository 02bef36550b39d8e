package propagation

import "fmt"

// InvalidElementsError reports an element set whose parameters are malformed
// or physically inconsistent. Predictions for that satellite are unavailable
// until its elements are replaced.
type InvalidElementsError struct {
	CatalogNumber int
	Reason        string
}

func (e *InvalidElementsError) Error() string {
	return fmt.Sprintf("invalid elements for catalog %d: %s", e.CatalogNumber, e.Reason)
}
