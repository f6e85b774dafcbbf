package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// RelationType classifies a parsed relationship candidate.
type RelationType string

// Relation types the parser can emit.
const (
	TypeFeatured      RelationType = "featured"
	TypeCollaboration RelationType = "collaboration"
	TypeRemix         RelationType = "remix"
)

// Strength scores per rule family.
const (
	strengthFeatured      = 6
	strengthCollaboration = 7
	strengthRemix         = 5
)

// CandidateEdge is a relationship candidate parsed from raw track strings.
// Source and Target are raw artist names, not yet resolved to profiles.
type CandidateEdge struct {
	Source   string
	Target   string
	Type     RelationType
	Strength float64
	Rule     string
	Matched  string
}

// Rules holds the configurable pattern lists. The collaboration separators
// in particular are a precision/recall tradeoff: generic conjunctions like
// "and" can split artist names that legitimately contain them, so callers
// may want a narrower list.
type Rules struct {
	FeaturedMarkers        []string
	CollaborationSeparators []string
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		FeaturedMarkers:        []string{`feat\.`, `ft\.`, `featuring`},
		CollaborationSeparators: []string{`vs\.`, `&`, `x`, `with`, `and`},
	}
}

// Extractor applies the three rule families to (artist, title) pairs.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	featuredRe   *regexp.Regexp
	separatorRes []separatorRule
	parenRemixRe *regexp.Regexp
	dashRemixRe  *regexp.Regexp
}

type separatorRule struct {
	name string
	re   *regexp.Regexp
}

// New compiles an extractor from the given rules.
func New(rules Rules) *Extractor {
	markers := strings.Join(rules.FeaturedMarkers, "|")
	e := &Extractor{
		// A featured credit runs from the marker to the next separator
		// (closing paren/bracket, comma, semicolon, slash) or string end.
		// The boundary keeps markers from matching inside ordinary words
		// ("Aircraft." must not read as "ft.").
		featuredRe:   regexp.MustCompile(`(?i)[(\[]?\s*\b(?:` + markers + `)\s+([^()\[\],;/]+)`),
		parenRemixRe: regexp.MustCompile(`(?i)[(\[]\s*([^()\[\]]+?)\s+remix\s*[)\]]`),
		dashRemixRe:  regexp.MustCompile(`(?i)-\s*([^()\[\]-]+?)\s+remix\s*$`),
	}
	for _, sep := range rules.CollaborationSeparators {
		e.separatorRes = append(e.separatorRes, separatorRule{
			name: sep,
			re:   regexp.MustCompile(`(?i)\s+` + sep + `\s+`),
		})
	}
	return e
}

// Extract parses relationship candidates out of one track's artist field and
// title. All three rule families run independently and all their matches are
// kept. Candidates whose target equals the main artist (case-sensitive,
// before normalization) are discarded.
func (e *Extractor) Extract(artistField, title string) []CandidateEdge {
	main := strings.TrimSpace(artistField)
	if main == "" {
		return nil
	}

	var edges []CandidateEdge
	edges = append(edges, e.extractFeatured(main, title)...)
	edges = append(edges, e.extractCollaborations(main)...)
	edges = append(edges, e.extractRemixes(main, title)...)
	return edges
}

// extractFeatured finds "feat."-style credits in the title. Each match
// yields one edge from the main artist to the featured artist.
func (e *Extractor) extractFeatured(main, title string) []CandidateEdge {
	var edges []CandidateEdge
	for _, m := range e.featuredRe.FindAllStringSubmatch(title, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || name == main {
			continue
		}
		edges = append(edges, CandidateEdge{
			Source:   main,
			Target:   name,
			Type:     TypeFeatured,
			Strength: strengthFeatured,
			Rule:     "featured-marker",
			Matched:  m[0],
		})
	}
	return edges
}

// extractCollaborations tests the artist field itself against the separator
// list. The first separator that produces a clean two-way split wins and
// emits a symmetric pair of edges.
func (e *Extractor) extractCollaborations(main string) []CandidateEdge {
	for _, sep := range e.separatorRes {
		loc := sep.re.FindStringIndex(main)
		if loc == nil {
			continue
		}
		a := strings.TrimSpace(main[:loc[0]])
		b := strings.TrimSpace(main[loc[1]:])
		if a == "" || b == "" || a == b {
			continue
		}
		rule := fmt.Sprintf("collaboration-separator(%s)", sep.name)
		return []CandidateEdge{
			{Source: a, Target: b, Type: TypeCollaboration, Strength: strengthCollaboration, Rule: rule, Matched: main},
			{Source: b, Target: a, Type: TypeCollaboration, Strength: strengthCollaboration, Rule: rule, Matched: main},
		}
	}
	return nil
}

// extractRemixes finds parenthesized/bracketed or hyphen-suffixed remix
// credits in the title.
func (e *Extractor) extractRemixes(main, title string) []CandidateEdge {
	var edges []CandidateEdge
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{e.parenRemixRe, e.dashRemixRe} {
		for _, m := range re.FindAllStringSubmatch(title, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" || name == main || seen[name] {
				continue
			}
			seen[name] = true
			edges = append(edges, CandidateEdge{
				Source:   main,
				Target:   name,
				Type:     TypeRemix,
				Strength: strengthRemix,
				Rule:     "remix-suffix",
				Matched:  m[0],
			})
		}
	}
	return edges
}
