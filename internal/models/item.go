package models

// Item is a purchasable catalog entry. The catalog is supplied at startup
// and never mutated.
type Item struct {
	Name      string `json:"name" yaml:"name"`
	UnitPrice int64  `json:"price" yaml:"price"`
}
