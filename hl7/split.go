package hl7

import (
	"regexp"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// BoundarySegments lists the control segments that open a new message, batch or file unit.
var BoundarySegments = []string{"MSH", "FHS", "BHS", "BTS", "FTS"}

type boundaryMatcher struct {
	name string
	re   *regexp.Regexp
}

var splitterCache = xsync.NewMapOf[Delimiters, []boundaryMatcher]()

func boundaryMatchers(d Delimiters) []boundaryMatcher {
	matchers, _ := splitterCache.LoadOrCompute(d, func() []boundaryMatcher {
		prefix := `(?:^|\r\n|\r|\n`
		if d.Segment != '\r' && d.Segment != '\n' {
			prefix += "|" + regexp.QuoteMeta(string(d.Segment))
		}
		prefix += ")"

		field := regexp.QuoteMeta(string(d.Field))
		list := make([]boundaryMatcher, 0, len(BoundarySegments))
		for _, name := range BoundarySegments {
			list = append(list, boundaryMatcher{
				name: name,
				re:   regexp.MustCompile(prefix + name + field),
			})
		}

		return list
	})

	return matchers
}

// Split slices text into units that start at a boundary segment.
//
// A boundary is one of BoundarySegments found at the start of text or right after a line
// terminator, and followed by the field separator. Each unit spans from its boundary to the
// next one, so concatenating the result reconstructs text.
//
// Text preceding the first boundary is returned as its own leading unit. When no boundary is
// found the whole text is returned as a single unit, and an empty text returns nil.
func Split(text string, d Delimiters) []string {
	if text == "" {
		return nil
	}

	offsets := make([]int, 0, 8)
	for _, m := range boundaryMatchers(d) {
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			// loc covers the terminator prefix, the name and the field separator
			offsets = append(offsets, loc[1]-len(m.name)-1)
		}
	}

	if len(offsets) == 0 {
		return []string{text}
	}

	slices.Sort(offsets)
	if offsets[0] != 0 {
		offsets = append([]int{0}, offsets...)
	}

	units := make([]string, 0, len(offsets))
	for i, off := range offsets {
		end := len(text)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		units = append(units, text[off:end])
	}

	return units
}

// SplitMessages returns the MSH units of text, dropping batch and file envelope segments.
//
// Line endings are normalized to the segment terminator of d first.
func SplitMessages(text string, d Delimiters) []string {
	seg := string(d.Segment)
	text = strings.NewReplacer("\r\n", seg, "\n", seg, "\r", seg).Replace(text)

	var messages []string
	for _, unit := range Split(text, d) {
		if strings.HasPrefix(unit, "MSH"+string(d.Field)) {
			messages = append(messages, unit)
		}
	}

	return messages
}
