// Package security implements the five-level content/query classification
// engine: pattern-based content scanning, keyword-based query checks, and the
// combined dual check used to gate retrieval results against a caller's
// clearance.
package security

import "log/slog"

// Level is an ordinal security classification. Comparisons always use the
// integer ordinal: a principal with ordinal >= content ordinal is authorized.
type Level int

const (
	LevelPublic Level = iota
	LevelInternal
	LevelConfidential
	LevelRestricted
	LevelTopSecret
)

var levelNames = map[Level]string{
	LevelPublic:       "PUBLIC",
	LevelInternal:     "INTERNAL",
	LevelConfidential: "CONFIDENTIAL",
	LevelRestricted:   "RESTRICTED",
	LevelTopSecret:    "TOP_SECRET",
}

var nameToLevel = map[string]Level{
	"PUBLIC":       LevelPublic,
	"INTERNAL":     LevelInternal,
	"CONFIDENTIAL": LevelConfidential,
	"RESTRICTED":   LevelRestricted,
	"TOP_SECRET":   LevelTopSecret,
}

// String returns the canonical name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "PUBLIC"
}

// Value returns the integer ordinal of the level.
func (l Level) Value() int {
	return int(l)
}

// Allows reports whether a principal holding this level may see content
// classified at the given level.
func (l Level) Allows(content Level) bool {
	return l >= content
}

// ParseLevel maps a level name to its Level. Unknown strings map to PUBLIC
// with a logged warning; deserialization must never fail on a bad level.
func ParseLevel(s string) Level {
	if level, ok := nameToLevel[s]; ok {
		return level
	}
	if s != "" {
		slog.Warn("unknown security level, defaulting to PUBLIC", "level", s)
	}
	return LevelPublic
}

// LevelFromValue maps an ordinal back to its Level. Out-of-range values map
// to PUBLIC.
func LevelFromValue(v int) Level {
	if v < int(LevelPublic) || v > int(LevelTopSecret) {
		return LevelPublic
	}
	return Level(v)
}

// Levels returns all levels in ascending order.
func Levels() []Level {
	return []Level{LevelPublic, LevelInternal, LevelConfidential, LevelRestricted, LevelTopSecret}
}

// AllowedLevelNames returns the names of every level visible to the given
// clearance, for use in index-layer filters.
func AllowedLevelNames(clearance Level) []string {
	names := make([]string, 0, int(clearance)+1)
	for _, l := range Levels() {
		if clearance.Allows(l) {
			names = append(names, l.String())
		}
	}
	return names
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names become
// PUBLIC, never an error.
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	return nil
}
