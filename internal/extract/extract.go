// Package extract mines fields out of judgment text by cutting between fixed
// section markers.
//
// Korean judgments print their section headers with wide internal spacing
// ("주       문", "이       유"). The markers below reproduce that spacing
// byte for byte; it is what keeps them from matching ordinary prose.
package extract

import (
	"regexp"
	"strings"
)

// Section markers of the Supreme Court judgment template.
const (
	MarkerOriginalJudgment = "원 심 판 결"
	MarkerRetrialJudgment  = "재심대상판결"
	MarkerSentencing       = "판 결 선 고"
	MarkerOrder            = "주       문"
	MarkerReason           = "이       유"
)

// Field names produced by the default ruleset.
const (
	FieldPreviousDecisionDate = "previous_decision_date"
	FieldDecision             = "decision"
)

// pageFooter matches page numbers such as "- 12" that leak into the text layer.
var pageFooter = regexp.MustCompile(`-\s*\d+`)

// Rule cuts one field out of a document.
type Rule struct {
	Field string
	// Require lists markers that must all appear somewhere in the text.
	Require []string
	// StartMarkers are tried in order; the first present one is used.
	StartMarkers []string
	// EndMarkers are tried in order; the first one present anywhere in the
	// text is used. When it does not follow the start marker the whole
	// remainder is kept.
	EndMarkers []string
	// Cut, when set, drops everything from its first match onward.
	Cut *regexp.Regexp
}

// Apply runs the rule against text. A missing required, start or end
// marker yields "".
func (r Rule) Apply(text string) string {
	for _, m := range r.Require {
		if !strings.Contains(text, m) {
			return ""
		}
	}

	start, ok := firstPresent(text, r.StartMarkers)
	if !ok {
		return ""
	}
	end, ok := firstPresent(text, r.EndMarkers)
	if !ok {
		return ""
	}

	_, rest, _ := strings.Cut(text, start)
	value, _, _ := strings.Cut(rest, end)
	value = strings.TrimSpace(value)

	if r.Cut != nil {
		if loc := r.Cut.FindStringIndex(value); loc != nil {
			value = strings.TrimSpace(value[:loc[0]])
		}
	}
	return value
}

func firstPresent(text string, markers []string) (string, bool) {
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return m, true
		}
	}
	return "", false
}

// Fields maps field names to extracted values.
type Fields map[string]string

// Ruleset is an ordered list of rules for one document template.
type Ruleset struct {
	Name  string
	Rules []Rule
}

// Apply runs every rule and collects the results. Every field is present in
// the result, empty when its markers were not found.
func (rs Ruleset) Apply(text string) Fields {
	out := make(Fields, len(rs.Rules))
	for _, r := range rs.Rules {
		out[r.Field] = r.Apply(text)
	}
	return out
}

// Judgment returns the ruleset for Supreme Court judgment PDFs.
func Judgment() Ruleset {
	return Ruleset{
		Name: "judgment",
		Rules: []Rule{
			{
				Field:        FieldPreviousDecisionDate,
				StartMarkers: []string{MarkerOriginalJudgment, MarkerRetrialJudgment},
				EndMarkers:   []string{MarkerSentencing, MarkerOrder},
			},
			{
				Field:        FieldDecision,
				Require:      []string{MarkerOrder, MarkerReason},
				StartMarkers: []string{MarkerOrder},
				EndMarkers:   []string{MarkerReason},
				Cut:          pageFooter,
			},
		},
	}
}

// PreviousDecisionDate extracts the lower-court decision block.
func PreviousDecisionDate(text string) string {
	return Judgment().Apply(text)[FieldPreviousDecisionDate]
}

// DecisionText extracts the order (주문) block.
func DecisionText(text string) string {
	return Judgment().Apply(text)[FieldDecision]
}
