// Package store holds the credential and content stores of the blog.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrInvalidInput reports an empty required field or a dangling reference.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUsername reports that the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAuthFailure is returned for unknown users and wrong passwords alike.
	ErrAuthFailure = errors.New("invalid username or password")
	// ErrNotFoundOrForbidden merges "no such record" and "not yours" for mutations.
	ErrNotFoundOrForbidden = errors.New("not found or not owned by caller")
	// ErrNotFound is only returned by reads.
	ErrNotFound = errors.New("not found")
)

// isDuplicateEntryError recognises unique violations from the gorm translator and raw driver messages.
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "Duplicate entry") // MySQL
}

// isForeignKeyError recognises references to rows that do not exist.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") || // SQLite
		strings.Contains(msg, "foreign key constraint fails") // MySQL
}

// Page selects a window of a listing. Zero values fall back to the first page of ten.
type Page struct {
	Number int
	Size   int
}

// Normalize applies the defaults and bounds used by listings.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 || p.Size > 100 {
		p.Size = 10
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}
