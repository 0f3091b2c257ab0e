// Package extractor reconstructs badge fields from raw recognized text.
//
// Parsing is landmark-relative: the area and company lines are located
// first and the remaining fields are read at fixed offsets from them.
// Extraction never fails; unresolved fields are reported through Field.Resolved.
package extractor

import "strings"

// Extract parses text with the AirportPass layout
func Extract(text string) Result {
	return AirportPass.Extract(text)
}

// Extract parses text with the layout's landmark rules
func (l Layout) Extract(text string) Result {
	lines := SplitLines(text)
	res := Result{AccessAreas: []string{}}

	areaIdx := indexOf(lines, l.IsAreaLine)
	companyIdx := indexOf(lines, l.IsCompanyLine)
	nameIdx := l.nameIndex(lines, areaIdx, companyIdx)

	if areaIdx >= 0 && nameIdx > areaIdx {
		res.AccessAreas = AccessAreaCodes(lines[areaIdx+1 : nameIdx])
	}

	if i := indexOf(lines, l.IsAuthorityLine); i >= 0 {
		res.IssuingAuthority = resolved(l.CleanAuthority(lines[i]))
	}
	if i := indexOf(lines, l.IsLocationLine); i >= 0 {
		res.Location = resolved(l.CleanLocation(lines[i]))
	}
	if areaIdx >= 0 && l.ExpiryPattern != nil {
		res.ExpiryDate = resolved(strings.ToUpper(l.ExpiryPattern.FindString(lines[areaIdx])))
	}

	used := make(map[int]bool)
	var name, position, company string
	if companyIdx >= 0 {
		company = cleanLine(lines[companyIdx])
		used[companyIdx] = true
		if i := companyIdx - l.PositionOffset; i >= 0 && !used[i] {
			position = cleanLine(lines[i])
			used[i] = true
		}
		if i := companyIdx - l.NameOffset; i >= 0 && !used[i] {
			name = cleanLine(lines[i])
			used[i] = true
		}
	}

	// bottom of the card is the most reliable region for the ID
	for i := len(lines) - 1; i >= 0; i-- {
		if used[i] {
			continue
		}
		if id, ok := ParseIDNumber(lines[i]); ok {
			res.IDNumber = resolved(correctID(id, l.IDCorrections))
			break
		}
	}

	res.Name = resolved(CleanTrailingTokens(name))
	res.Position = resolved(CleanTrailingTokens(position))
	if company = CleanTrailingTokens(company); company != "" {
		company = correctCompany(company, l.CompanyCorrections)
	}
	res.Company = resolved(company)

	return res
}

// nameIndex bounds the access-area zone. The name value itself is only read
// relative to the company anchor.
func (l Layout) nameIndex(lines []string, areaIdx, companyIdx int) int {
	if companyIdx >= 0 && companyIdx-l.NameOffset >= 0 {
		return companyIdx - l.NameOffset
	}
	for i, line := range lines {
		if i > areaIdx && l.IsNameCandidate(line) {
			return i
		}
	}
	return -1
}

// AccessAreaCodes collects every distinct uppercase Latin letter in zone,
// in order of first appearance. Any capital counts, so stray recognition
// noise inside the zone becomes a code too.
func AccessAreaCodes(zone []string) []string {
	codes := []string{}
	seen := make(map[rune]bool)
	for _, line := range zone {
		for _, r := range line {
			if r >= 'A' && r <= 'Z' && !seen[r] {
				seen[r] = true
				codes = append(codes, string(r))
			}
		}
	}
	return codes
}

func indexOf(lines []string, match func(string) bool) int {
	if match == nil {
		return -1
	}
	for i, line := range lines {
		if match(line) {
			return i
		}
	}
	return -1
}
