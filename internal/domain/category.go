package domain

import "time"

// Category is reference data for ticket classification. Rarely mutated,
// safe to serve from the reference cache.
type Category struct {
	ID        string
	Name      string
	Color     string
	Icon      string
	CreatedAt time.Time
}
