package visa

import (
	"regexp"
	"strings"
)

// Detector flags postings that likely offer H-1B/OPT/STEM-OPT sponsorship
// based on keyword and pattern matches over the posting text.
type Detector struct {
	positive []string
	negative []*regexp.Regexp
}

// Result is the classification for one posting.
type Result struct {
	Sponsorship bool     `json:"sponsorship"`
	Matched     []string `json:"matched,omitempty"`
}

// NewDetector creates a detector with the default keyword sets.
func NewDetector() *Detector {
	return &Detector{
		positive: []string{
			"h1b", "h-1b", "h1-b",
			"visa sponsorship",
			"sponsorship available",
			"will sponsor",
			"willing to sponsor",
			"can sponsor",
			"sponsor work visa",
			"sponsor employment visa",
			"opt", "stem opt", "stem-opt", "cpt",
			"work authorization sponsorship",
			"immigration sponsorship",
		},
		// Negative phrasing overrides any positive hit: a posting saying
		// "no H-1B sponsorship" mentions H-1B without offering it.
		negative: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bno\s+(visa\s+)?sponsorship\b`),
			regexp.MustCompile(`(?i)\bnot?\s+(able|available)\s+to\s+sponsor\b`),
			regexp.MustCompile(`(?i)\bunable\s+to\s+sponsor\b`),
			regexp.MustCompile(`(?i)\bcannot\s+sponsor\b`),
			regexp.MustCompile(`(?i)\bwon'?t\s+sponsor\b`),
			regexp.MustCompile(`(?i)\bdo(es)?\s+not\s+(offer|provide)\s+(visa\s+)?sponsorship\b`),
			regexp.MustCompile(`(?i)\bwithout\s+(the\s+need\s+for\s+)?sponsorship\b`),
			regexp.MustCompile(`(?i)\bno\s+h-?1b\b`),
			regexp.MustCompile(`(?i)\bus\s+citizens?\s+only\b`),
			regexp.MustCompile(`(?i)\bcitizenship\s+(is\s+)?required\b`),
			regexp.MustCompile(`(?i)\bsecurity\s+clearance\b`),
			regexp.MustCompile(`(?i)\bmust\s+be\s+authorized\s+to\s+work\b[^.]*\bwithout\b`),
		},
	}
}

// Detect classifies a posting from its title and description.
func (d *Detector) Detect(title, description string) Result {
	text := strings.ToLower(title + " " + description)

	for _, re := range d.negative {
		if re.MatchString(text) {
			return Result{Sponsorship: false}
		}
	}

	var matched []string
	for _, kw := range d.positive {
		if containsWord(text, kw) {
			matched = append(matched, kw)
		}
	}

	return Result{
		Sponsorship: len(matched) > 0,
		Matched:     matched,
	}
}

// containsWord matches the keyword on word boundaries so that "opt" does not
// fire inside "optimize" or "options".
func containsWord(text, keyword string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)

		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
