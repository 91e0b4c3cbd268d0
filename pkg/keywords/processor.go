package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// Processor expands raw query strings into the keyword sets the providers
// are searched with. Expansion is synonym-based so a single configured
// query like "software engineer" also reaches postings titled "swe" or
// "software developer".
type Processor struct {
	synonyms   map[string][]string
	exclusions []string
}

func NewProcessor() *Processor {
	return &Processor{
		synonyms:   defaultSynonyms(),
		exclusions: defaultExclusions(),
	}
}

// Expand cleans the input, adds synonyms and drops excluded terms. The
// result is sorted so repeated runs produce the same provider queries.
func (p *Processor) Expand(input string) []string {
	keywords := p.cleanAndSplit(input)

	seen := make(map[string]bool)
	for _, keyword := range keywords {
		seen[keyword] = true
		for _, synonym := range p.synonyms[keyword] {
			seen[synonym] = true
		}
	}

	var expanded []string
	for keyword := range seen {
		if p.excluded(keyword) {
			continue
		}
		expanded = append(expanded, keyword)
	}
	sort.Strings(expanded)
	return expanded
}

// AddSynonyms registers extra expansions for a keyword, replacing any
// defaults for that keyword.
func (p *Processor) AddSynonyms(keyword string, synonyms []string) {
	p.synonyms[strings.ToLower(keyword)] = synonyms
}

// AddExclusions appends terms that should never reach a provider query.
func (p *Processor) AddExclusions(exclusions []string) {
	p.exclusions = append(p.exclusions, exclusions...)
}

var (
	nonWordPattern   = regexp.MustCompile(`[^\w\s\-\+\.#]`)
	delimiterPattern = regexp.MustCompile(`[\s,;|]+`)
)

func (p *Processor) cleanAndSplit(input string) []string {
	input = strings.ToLower(input)
	input = nonWordPattern.ReplaceAllString(input, " ")

	var cleaned []string
	for _, keyword := range delimiterPattern.Split(input, -1) {
		keyword = strings.TrimSpace(keyword)
		if len(keyword) >= 2 {
			cleaned = append(cleaned, keyword)
		}
	}
	return cleaned
}

func (p *Processor) excluded(keyword string) bool {
	for _, exclusion := range p.exclusions {
		if strings.Contains(keyword, exclusion) {
			return true
		}
	}
	return false
}

func defaultSynonyms() map[string][]string {
	return map[string][]string{
		"software engineer": {"developer", "programmer", "software developer", "swe"},
		"developer":         {"engineer", "programmer", "software developer"},
		"frontend":          {"front-end", "front end", "ui developer", "web developer"},
		"backend":           {"back-end", "back end", "server-side", "api developer"},
		"fullstack":         {"full-stack", "full stack", "full-stack developer"},
		"devops":            {"site reliability engineer", "sre", "infrastructure engineer"},
		"data":              {"data engineer", "data analyst", "data scientist"},
		"mobile":            {"ios", "android", "react native", "flutter"},
		"javascript":        {"js", "node.js", "typescript", "react"},
		"python":            {"django", "flask", "fastapi"},
		"java":              {"spring", "spring boot", "kotlin"},
		"golang":            {"go developer", "golang developer"},
		"new grad":          {"entry level", "graduate", "early career", "university grad"},
		"intern":            {"internship", "co-op", "summer analyst"},
		"remote":            {"work from home", "distributed", "wfh"},
	}
}

func defaultExclusions() []string {
	return []string{
		"unpaid",
		"volunteer",
		"commission only",
		"mlm",
		"door to door",
		"cold calling",
	}
}
