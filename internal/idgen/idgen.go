// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes.
const (
	PrefixUser         = "usr-"
	PrefixApplication  = "app-"
	PrefixSchema       = "sch-"
	PrefixEntity       = "ent-"
	PrefixRelationship = "rel-"
	PrefixBot          = "bot-"
	PrefixInstance     = "bin-"
	PrefixMessage      = "msg-"
	PrefixPrompt       = "prm-"
	PrefixComponent    = "cmp-"
	PrefixFeature      = "fea-"
	PrefixWorkflow     = "wfl-"
	PrefixAction       = "wfa-"
	PrefixTool         = "tol-"
	PrefixBuild        = "bld-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// MustGenerate is GenerateWithPrefix for callers that cannot recover from a
// broken random source.
func MustGenerate(prefix string) string {
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		panic(err)
	}
	return id
}
