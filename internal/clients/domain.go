// Package clients is the registry of customers identified by national ID.
package clients

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Client is a customer.
type Client struct {
	ID         int64     `json:"id"`
	NationalID string    `json:"national_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	// ErrNotFound indicates no client matched.
	ErrNotFound = shared.Errorf(shared.ErrNotFound, "Client not found.")
	// ErrDuplicate is returned by Create when the national ID already exists.
	ErrDuplicate = shared.Errorf(shared.ErrDuplicate, "A client with this national ID already exists.")
	// ErrInvalidNationalID rejects IDs that are not 8 to 20 digits.
	ErrInvalidNationalID = shared.Errorf(shared.ErrValidation, "The client national ID must contain 8 to 20 digits.")
	// ErrNameRequired rejects blank names.
	ErrNameRequired = shared.Errorf(shared.ErrValidation, "The client name is required.")
)

// NormalizeName collapses whitespace and title-cases a client name. A
// cases.Caser is stateful, so each call builds its own.
func NormalizeName(name string) string {
	return cases.Title(language.Spanish).String(strings.Join(strings.Fields(name), " "))
}

// NormalizeNationalID trims the ID and checks it holds 8 to 20 digits.
func NormalizeNationalID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if len(id) < 8 || len(id) > 20 {
		return "", ErrInvalidNationalID
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", ErrInvalidNationalID
		}
	}
	return id, nil
}
