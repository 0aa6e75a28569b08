// Package ident normalizes catalog identities for case-insensitive matching.
package ident

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of id. A new Caser is built per call
// because Casers carry state and must not be shared across goroutines.
func Fold(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}

func Equal(a, b string) bool {
	if a == b {
		return true
	}
	return Fold(a) == Fold(b)
}

// Local returns the unqualified part of a namespaced id ("core:wood" -> "wood").
func Local(id string) string {
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}
