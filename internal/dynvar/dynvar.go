// Package dynvar implements the per-trial dynamic variable substitution
// applied to scenario input: "{{$uuid}}", "{{$timestamp}}", and
// "{{$randomHex}}". Static substitution of the agent's "${model}"
// placeholder is handled separately by the suite package; the two regimes
// must not be confused.
package dynvar

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var pattern = regexp.MustCompile(`\{\{\$(\w+)\}\}`)

// Clock returns the current time used for "{{$timestamp}}". Tests inject a
// fixed Clock so substitution output is reproducible.
type Clock func() time.Time

// IDGen returns a fresh identifier used for "{{$uuid}}". Tests inject a
// deterministic IDGen.
type IDGen func() string

// HexGen returns fresh random hex characters used for "{{$randomHex}}".
// Tests inject a deterministic HexGen.
type HexGen func() (string, error)

// Substituter applies dynamic variable substitution using injectable
// determinism sources, matching the design guidance that every
// non-deterministic input be swappable in tests.
type Substituter struct {
	Now      Clock
	NewUUID  IDGen
	RandomHex HexGen
}

// Default returns a Substituter backed by real randomness and wall-clock
// time.
func Default() *Substituter {
	return &Substituter{
		Now:       time.Now,
		NewUUID:   uuid.NewString,
		RandomHex: randomHex,
	}
}

// Substitute expands every recognized "{{$name}}" placeholder in input.
// Unknown names are left untouched, matching §4.A of the suite loader
// contract. Per Testable Property 6, two occurrences of the same
// placeholder within one Substitute call resolve to the same generated
// value; a fresh value is only drawn on the placeholder's first occurrence
// in this call, and cached for the remainder of it.
func (s *Substituter) Substitute(input string) (string, error) {
	var substErr error
	resolved := make(map[string]string)
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		if substErr != nil {
			return match
		}
		name := pattern.FindStringSubmatch(match)[1]
		if v, ok := resolved[name]; ok {
			return v
		}
		var value string
		switch name {
		case "uuid":
			value = s.NewUUID()
		case "timestamp":
			value = s.Now().UTC().Format(time.RFC3339)
		case "randomHex":
			hex, err := s.RandomHex()
			if err != nil {
				substErr = err
				return match
			}
			value = hex
		default:
			return match
		}
		resolved[name] = value
		return value
	})
	if substErr != nil {
		return "", substErr
	}
	return result, nil
}

func randomHex() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
