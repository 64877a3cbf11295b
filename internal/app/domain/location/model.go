// Package location defines the catalog record served by the RPC methods.
package location

// Location is one catalog entry. Text fields are sanitized by the data
// access layer before they leave it, and NULL columns map to the zero
// value, so no field is ever absent from the wire shape.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	State       string  `json:"state"`
	Description string  `json:"description"`
	SVGLink     string  `json:"svg_link"`
	Rating      float64 `json:"rating"`
}
