package decompose

import (
	"strings"
	"unicode/utf8"
)

// SplitMethod names how a document was divided.
type SplitMethod string

const (
	SplitHeading  SplitMethod = "heading"
	SplitLines    SplitMethod = "lines"
	SplitMidpoint SplitMethod = "midpoint"
)

// headingVariants are tried in order; the first acceptable occurrence wins.
var headingVariants = []string{
	"## 3. PRACTICAL APPLICATIONS",
	"### 3. PRACTICAL APPLICATIONS",
	"# 3. PRACTICAL APPLICATIONS",
	"3. PRACTICAL APPLICATIONS",
	"## PRACTICAL APPLICATIONS",
	"PRACTICAL APPLICATIONS",
}

// Split divides report into two parts whose concatenation is exactly report.
//
// A heading variant is used when it occurs after the start and before ratio of the document.
// Otherwise the lines within radius of the middle line are scanned for a blank or heading line.
// As a last resort the trimmed document is cut at its middle rune. ok is false only for documents of
// fewer than two runes.
func Split(report string, ratio float64, radius int) (first, second string, method SplitMethod, ok bool) {
	if utf8.RuneCountInString(report) < 2 {
		return report, "", "", false
	}

	limit := int(float64(len(report)) * ratio)
	for _, heading := range headingVariants {
		idx := strings.Index(report, heading)
		if idx > 0 && idx < limit && halvesUsable(report[:idx], report[idx:]) {
			return report[:idx], report[idx:], SplitHeading, true
		}
	}

	if at, found := lineBoundary(report, radius); found {
		return report[:at], report[at:], SplitLines, true
	}

	core := strings.TrimSpace(report)
	if utf8.RuneCountInString(core) < 2 {
		at := midRune(report)
		return report[:at], report[at:], SplitMidpoint, true
	}
	at := strings.Index(report, core) + midRune(core)
	return report[:at], report[at:], SplitMidpoint, true
}

// lineBoundary returns the byte offset of a blank or '#' line near the middle line.
func lineBoundary(report string, radius int) (int, bool) {
	lines := strings.Split(report, "\n")
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}

	mid := len(lines) / 2
	for i := max(1, mid-radius); i < min(len(lines), mid+radius); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			continue
		}
		at := offsets[i]
		if halvesUsable(report[:at], report[at:]) {
			return at, true
		}
	}
	return 0, false
}

func midRune(s string) int {
	target := utf8.RuneCountInString(s) / 2
	n := 0
	for i := range s {
		if n == target {
			return i
		}
		n++
	}
	return len(s)
}

func halvesUsable(a, b string) bool {
	return strings.TrimSpace(a) != "" && strings.TrimSpace(b) != ""
}
