// ABOUTME: Entity identifier parsing and validation for the table:key wire format
// ABOUTME: Enforces the character set contract shared by the CLI, MCP, and storage layers
package ids

import (
	"fmt"
	"strings"
)

// EntityID is a validated "<table>:<key>" identifier.
type EntityID struct {
	Table string
	Key   string
}

// Parse validates and splits an entity id of the form "<table>:<key>".
// Table is limited to [a-z_]+, key to [A-Za-z0-9_-]+.
func Parse(raw string) (EntityID, error) {
	table, key, ok := strings.Cut(raw, ":")
	if !ok {
		return EntityID{}, fmt.Errorf("invalid entity id %q: missing ':' separator", raw)
	}
	if !validTable(table) {
		return EntityID{}, fmt.Errorf("invalid entity id %q: table must match [a-z_]+", raw)
	}
	if !validKey(key) {
		return EntityID{}, fmt.Errorf("invalid entity id %q: key must match [A-Za-z0-9_-]+", raw)
	}
	return EntityID{Table: table, Key: key}, nil
}

// New builds a validated EntityID from its parts.
func New(table, key string) (EntityID, error) {
	return Parse(table + ":" + key)
}

// MustParse panics on invalid input. For literals in tests.
func MustParse(raw string) EntityID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValid reports whether raw is a well-formed entity id.
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// String returns the wire format "<table>:<key>".
func (id EntityID) String() string {
	return id.Table + ":" + id.Key
}

// Name returns the key part, used as a display fallback when an
// entity row carries no name.
func Name(raw string) string {
	if _, key, ok := strings.Cut(raw, ":"); ok {
		return key
	}
	return raw
}

// Table returns the table part of a raw id, or "" when malformed.
func Table(raw string) string {
	table, _, ok := strings.Cut(raw, ":")
	if !ok {
		return ""
	}
	return table
}

func validTable(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}

func validKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
