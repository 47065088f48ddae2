package models

import (
	"fmt"
	"strings"
)

// Category is one of the fixed expense categories.
type Category string

const (
	Food          Category = "Food"
	Travel        Category = "Travel"
	Rent          Category = "Rent"
	Medical       Category = "Medical"
	Shopping      Category = "Shopping"
	Entertainment Category = "Entertainment"
	Others        Category = "Others"
)

// Categories lists every category in display order.
var Categories = []Category{Food, Travel, Rent, Medical, Shopping, Entertainment, Others}

// ParseCategory maps s to its canonical category, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}
