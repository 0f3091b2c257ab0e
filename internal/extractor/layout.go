package extractor

import (
	"regexp"
	"strings"
)

// Layout holds the landmark rules of one badge template. Extraction passes
// only talk to these predicates, so another template is another Layout.
type Layout struct {
	Name string

	// IsAreaLine marks the access-area anchor, which also carries the expiry date
	IsAreaLine func(line string) bool
	// IsCompanyLine marks the company anchor
	IsCompanyLine func(line string) bool
	// IsNameCandidate is the fallback name test used when the company
	// anchor is missing or too close to the top
	IsNameCandidate func(line string) bool
	IsAuthorityLine func(line string) bool
	IsLocationLine  func(line string) bool

	// Offsets above the company line
	PositionOffset int
	NameOffset     int

	// ExpiryPattern is matched against the area line
	ExpiryPattern *regexp.Regexp

	CleanAuthority func(line string) string
	CleanLocation  func(line string) string

	// CompanyCorrections are applied in order; a key found in the
	// uppercased company replaces the whole value
	CompanyCorrections []Correction
	// IDCorrections replace a misread prefix of the ID number
	IDCorrections []Correction
}

// Correction maps a known misread to its canonical form
type Correction struct {
	From string
	To   string
}

var (
	expiryRE         = regexp.MustCompile(`(?i)\d{1,2}\s+(JAN|FEB|MAR|APR|MEI|JUN|JUL|AGU|SEP|OKT|NOV|DES)\s+\d{4}`)
	authorityNoiseRE = regexp.MustCompile(`(?i)^(Co|Lo)\s`)
	locationNoiseRE  = regexp.MustCompile(`^[/\s(0;):]+`)
)

// AirportPass is the airport access pass template (Indonesian airport authority)
var AirportPass = Layout{
	Name:            "airport-pass",
	IsAreaLine:      containsFold("AREA"),
	IsCompanyLine:   hasPrefixFold("PT"),
	IsNameCandidate: looksLikeName,
	IsAuthorityLine: containsFold("OTORITAS"),
	IsLocationLine:  containsFold("BANDAR UDARA"),
	PositionOffset:  1,
	NameOffset:      2,
	ExpiryPattern:   expiryRE,
	CleanAuthority: func(line string) string {
		return authorityNoiseRE.ReplaceAllString(cleanLine(line), "")
	},
	CleanLocation: func(line string) string {
		return locationNoiseRE.ReplaceAllString(cleanLine(line), "")
	},
	CompanyCorrections: []Correction{
		{From: "PT ANGKAS", To: "PT ANGKASA PURA"},
		{From: "ANGKASA PU", To: "PT ANGKASA PURA"},
		{From: "KANTOM", To: "KANTOR"},
	},
	IDCorrections: []Correction{
		{From: "BAPSTN", To: "B.AP.STN"},
	},
}

func containsFold(keyword string) func(string) bool {
	return func(line string) bool {
		return strings.Contains(strings.ToUpper(line), keyword)
	}
}

func hasPrefixFold(prefix string) func(string) bool {
	return func(line string) bool {
		return strings.HasPrefix(strings.ToUpper(line), prefix)
	}
}

// looksLikeName accepts 2-4 words with at least one longer than 2 characters,
// rejecting company and job-title lines. "A B C" is not a name.
func looksLikeName(line string) bool {
	upper := strings.ToUpper(line)
	if strings.HasPrefix(upper, "PT") || strings.Contains(upper, "HEAD") || strings.Contains(upper, "CENTER") {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if len([]rune(w)) > 2 {
			return true
		}
	}
	return false
}
