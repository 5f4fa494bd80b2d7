package ingestion

import (
	"regexp"
	"strings"
)

// energyDomains maps a domain label to the keywords that signal it. Order
// matters for tie-breaking: when two domains score equally, the earlier one
// wins.
var energyDomains = []struct {
	name     string
	keywords []string
}{
	{"solar", []string{"solar", "photovoltaic", "pv", "panel", "irradiance", "inverter"}},
	{"wind", []string{"wind", "turbine", "rotor", "nacelle", "offshore", "onshore"}},
	{"grid", []string{"grid", "transmission", "distribution", "substation", "transformer", "voltage"}},
	{"power_plant", []string{"power plant", "generation", "capacity", "megawatt", "mw", "gw"}},
	{"nuclear", []string{"nuclear", "reactor", "uranium", "fission"}},
	{"hydro", []string{"hydro", "dam", "reservoir", "hydroelectric"}},
	{"storage", []string{"battery", "storage", "lithium", "energy storage"}},
	{"anomaly", []string{"anomaly", "detection", "outlier", "abnormal", "fault"}},
}

// unitRules separate a magnitude from its unit with exactly one space so that
// "500MW" and "500  MW" embed identically.
var unitRules = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)(\d+)\s*MW\b`), "$1 MW"},
	{regexp.MustCompile(`(?i)(\d+)\s*GW\b`), "$1 GW"},
	{regexp.MustCompile(`(?i)(\d+)\s*kW\b`), "$1 kW"},
	{regexp.MustCompile(`(?i)(\d+)\s*MWh\b`), "$1 MWh"},
	{regexp.MustCompile(`(?i)(\d+)\s*kV\b`), "$1 kV"},
	{regexp.MustCompile(`(\d+)\s*V\b`), "$1 V"},
	{regexp.MustCompile(`(?i)(\d+)\s*Hz\b`), "$1 Hz"},
}

var (
	intraLineSpace = regexp.MustCompile(`[ \t]+`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// Preprocess normalizes document text before chunking: power, voltage, and
// frequency units get a canonical single-space form, runs of spaces and tabs
// collapse to one, and runs of blank lines collapse to a single blank line.
// Paragraph boundaries survive so the chunker can split on them.
func Preprocess(text string) string {
	for _, rule := range unitRules {
		text = rule.pattern.ReplaceAllString(text, rule.replace)
	}
	text = intraLineSpace.ReplaceAllString(text, " ")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// DetectDomain scores text against each energy domain's keywords and returns
// the best-scoring domain, or "" when no keyword appears at all.
func DetectDomain(text string) string {
	lower := strings.ToLower(text)

	best := ""
	bestScore := 0
	for _, domain := range energyDomains {
		score := 0
		for _, kw := range domain.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = domain.name
			bestScore = score
		}
	}
	return best
}
