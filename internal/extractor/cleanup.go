package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLineLength discards longer lines as recognition noise
const MaxLineLength = 50

var (
	leadingNoiseRE  = regexp.MustCompile(`^[=:\-_\s]+`)
	trailingNoiseRE = regexp.MustCompile(`[=\-_\s]+$`)
	alphaRE         = regexp.MustCompile(`^[A-Za-z]+$`)

	idCandidateRE = regexp.MustCompile(`(?i)\b([A-Z\s.]*\d[\d.]*)`)
	idGarbageRE   = regexp.MustCompile(`\s{2,}|[a-z]{3,}`)
	whitespaceRE  = regexp.MustCompile(`\s`)
)

// SplitLines trims every line and keeps those with 1 to MaxLineLength-1 characters
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n > 0 && n < MaxLineLength {
			lines = append(lines, line)
		}
	}
	return lines
}

func cleanLine(line string) string {
	line = leadingNoiseRE.ReplaceAllString(line, "")
	line = trailingNoiseRE.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// CleanTrailingTokens drops trailing tokens that are not purely alphabetic
// or are longer than 8 characters, always keeping the first token.
func CleanTrailingTokens(value string) string {
	words := strings.Fields(value)
	for len(words) > 1 {
		last := words[len(words)-1]
		if alphaRE.MatchString(last) && len(last) <= 8 {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// ParseIDNumber reads a dot-segmented ID number from one line. The
// candidate is cut at the first double space or lowercase run, stripped of
// whitespace, and must hold at least two periods and more than 10 characters.
func ParseIDNumber(line string) (string, bool) {
	match := idCandidateRE.FindString(line)
	if match == "" {
		return "", false
	}
	if loc := idGarbageRE.FindStringIndex(match); loc != nil {
		match = match[:loc[0]]
	}
	id := whitespaceRE.ReplaceAllString(strings.TrimSpace(match), "")
	if strings.Count(id, ".") < 2 || len(id) <= 10 {
		return "", false
	}
	return id, true
}

// correctCompany applies corrections in order, each one against the
// value left by the previous
func correctCompany(company string, corrections []Correction) string {
	for _, c := range corrections {
		if strings.Contains(strings.ToUpper(company), c.From) {
			company = c.To
		}
	}
	return company
}

func correctID(id string, corrections []Correction) string {
	for _, c := range corrections {
		if strings.HasPrefix(id, c.From) {
			return strings.Replace(id, c.From, c.To, 1)
		}
	}
	return id
}
