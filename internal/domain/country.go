package domain

import "strings"

// Country is the country tuple the backend attaches to every production location.
type Country struct {
	Alpha2  string `json:"alpha_2"`
	Alpha3  string `json:"alpha_3,omitempty"`
	Numeric string `json:"numeric,omitempty"`
	Name    string `json:"name"`
}

// IsZero reports whether no country was set.
func (c Country) IsZero() bool {
	return c.Alpha2 == "" && c.Alpha3 == "" && c.Numeric == "" && c.Name == ""
}

// Matches reports whether code identifies this country by any of its representations.
func (c Country) Matches(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return strings.EqualFold(code, c.Alpha2) ||
		strings.EqualFold(code, c.Alpha3) ||
		code == c.Numeric ||
		strings.EqualFold(code, c.Name)
}
