package entity

import "strings"

// Dialect is one of the regional language variants offered.
type Dialect struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Region       string `json:"region" yaml:"region"`
	Color        string `json:"color" yaml:"color"`
	TotalLessons int    `json:"total_lessons" yaml:"total_lessons"`
}

// Known dialect identifiers.
const (
	DialectHiligaynon = "hiligaynon"
	DialectWaray      = "waray"
	DialectBikol      = "bikol"
	DialectIlocano    = "ilocano"
)

// NormalizeDialectID lowercases and trims a dialect identifier.
func NormalizeDialectID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
