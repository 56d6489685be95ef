package models

// CatalogEntry is one selectable product (commodity code) or country.
type CatalogEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
