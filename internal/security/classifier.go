package security

import (
	"math"
	"regexp"
	"strings"
)

// checkOrder walks levels from most to least sensitive. PUBLIC carries no
// rules; it is the level of content with no findings.
var checkOrder = []Level{LevelTopSecret, LevelRestricted, LevelConfidential, LevelInternal}

// maxMatchesPerFinding caps how many distinct match strings a finding keeps.
const maxMatchesPerFinding = 5

// Finding is one matched rule group in a piece of content.
type Finding struct {
	Category       string   `json:"category"`
	Level          Level    `json:"level"`
	MatchedPattern string   `json:"pattern"`
	Matches        []string `json:"matches"`
}

// Decision is the result of a dual query/content check against a clearance.
type Decision struct {
	Level          Level  `json:"level"`
	LevelValue     int    `json:"level_value"`
	Warning        string `json:"warning,omitempty"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
	AccessAllowed  bool   `json:"access_allowed"`
}

// Detection is the result of auto-detecting a document's level at ingest.
type Detection struct {
	Level          Level     `json:"detected_level"`
	LevelValue     int       `json:"level_value"`
	Confidence     float64   `json:"confidence"`
	FindingsCount  int       `json:"findings_count"`
	Findings       []Finding `json:"findings"`
	Recommendation string    `json:"recommendation"`
}

type compiledGroup struct {
	category string
	level    Level
	patterns []*regexp.Regexp
}

// Checker classifies content and queries against the five-level taxonomy.
// Patterns are compiled once at construction; a Checker is immutable and
// safe for concurrent use.
type Checker struct {
	groups map[Level][]compiledGroup
}

// NewChecker compiles the rule tables into a ready-to-use Checker.
func NewChecker() *Checker {
	c := &Checker{groups: make(map[Level][]compiledGroup, len(contentRules))}
	for level, ruleGroups := range contentRules {
		for _, group := range ruleGroups {
			cg := compiledGroup{category: group.category, level: level}
			for _, pattern := range group.patterns {
				cg.patterns = append(cg.patterns, regexp.MustCompile(pattern))
			}
			c.groups[level] = append(c.groups[level], cg)
		}
	}
	return c
}

// ClassifyContent runs every pattern of every rule group against the text.
// A group contributes one Finding when at least one of its patterns matches,
// keeping up to five distinct match strings. The effective level is the
// highest level with a finding, PUBLIC when there are none. Malformed or
// empty input yields (PUBLIC, nil); classification never blocks ingestion.
func (c *Checker) ClassifyContent(content string) (Level, []Finding) {
	if content == "" {
		return LevelPublic, nil
	}

	var findings []Finding
	highest := LevelPublic

	for _, level := range checkOrder {
		for _, group := range c.groups[level] {
			finding, ok := matchGroup(group, content)
			if !ok {
				continue
			}
			findings = append(findings, finding)
			if level > highest {
				highest = level
			}
		}
	}

	return highest, findings
}

func matchGroup(group compiledGroup, content string) (Finding, bool) {
	var matches []string
	firstPattern := ""

	for _, pattern := range group.patterns {
		found := pattern.FindAllString(content, maxMatchesPerFinding)
		if len(found) == 0 {
			continue
		}
		if firstPattern == "" {
			firstPattern = pattern.String()
		}
		for _, m := range found {
			if len(matches) >= maxMatchesPerFinding {
				break
			}
			if !containsString(matches, m) {
				matches = append(matches, m)
			}
		}
	}

	if firstPattern == "" {
		return Finding{}, false
	}
	return Finding{
		Category:       group.category,
		Level:          group.level,
		MatchedPattern: firstPattern,
		Matches:        matches,
	}, true
}

// ClassifyQuery scans the query for sensitive keywords, walking levels from
// TOP_SECRET down and returning on the first hit. The result is the first
// level with any keyword match, not necessarily the most severe keyword
// within that level; a tuned behavior kept for compatibility.
func (c *Checker) ClassifyQuery(query string) (Level, string) {
	lower := strings.ToLower(query)
	for _, level := range checkOrder {
		for _, keyword := range queryKeywords[level] {
			if strings.Contains(lower, keyword) {
				return level, keyword
			}
		}
	}
	return LevelPublic, ""
}

// DualCheck classifies both the query and the content, takes the maximum of
// the two levels, and compares it against the user's clearance. The warning
// distinguishes denied access from classified-but-visible content.
func (c *Checker) DualCheck(query, content string, clearance Level) Decision {
	queryLevel, matchedKeyword := c.ClassifyQuery(query)
	contentLevel, _ := c.ClassifyContent(content)

	effective := queryLevel
	if contentLevel > effective {
		effective = contentLevel
	}

	allowed := clearance.Allows(effective)

	warning := ""
	if !allowed {
		warning = "Access denied. Content requires " + effective.String() + " clearance."
	} else if effective > LevelPublic {
		warning = "Content classified as " + effective.String() + "."
	}

	return Decision{
		Level:          effective,
		LevelValue:     effective.Value(),
		Warning:        warning,
		MatchedKeyword: matchedKeyword,
		AccessAllowed:  allowed,
	}
}

// AutoDetect classifies content and attaches a confidence score. With no
// findings the content is confidently PUBLIC (1.0); otherwise confidence is
// 0.5 + 0.5 * weightedScore/maxPossible, rounded to two decimals, where
// weightedScore sums ordinal(level) * matchCount over findings. The score is
// a heuristic: more and higher-severity matches push confidence up.
func (c *Checker) AutoDetect(content string) Detection {
	level, findings := c.ClassifyContent(content)

	confidence := 1.0
	if len(findings) > 0 {
		weighted := 0
		for _, f := range findings {
			count := len(f.Matches)
			if count == 0 {
				count = 1
			}
			weighted += f.Level.Value() * count
		}
		maxPossible := len(findings) * int(LevelTopSecret) * maxMatchesPerFinding
		confidence = 0.5 + float64(weighted)/float64(maxPossible)*0.5
		if confidence > 1.0 {
			confidence = 1.0
		}
		confidence = math.Round(confidence*100) / 100
	}

	return Detection{
		Level:          level,
		LevelValue:     level.Value(),
		Confidence:     confidence,
		FindingsCount:  len(findings),
		Findings:       findings,
		Recommendation: recommendations[level],
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
