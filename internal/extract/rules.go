package extract

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type rulesetFile struct {
	Name  string     `yaml:"name"`
	Rules []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	Field        string   `yaml:"field"`
	Require      []string `yaml:"require"`
	StartMarkers []string `yaml:"start_markers"`
	EndMarkers   []string `yaml:"end_markers"`
	Cut          string   `yaml:"cut"`
}

// LoadRuleset reads a ruleset from a YAML file. Marker strings are used
// verbatim, so quote them in the file to keep their internal spacing.
func LoadRuleset(path string) (Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, eris.Wrapf(err, "extract: read ruleset %s", path)
	}
	return ParseRuleset(data)
}

// ParseRuleset decodes a YAML ruleset.
func ParseRuleset(data []byte) (Ruleset, error) {
	var f rulesetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Ruleset{}, eris.Wrap(err, "extract: parse ruleset")
	}
	if len(f.Rules) == 0 {
		return Ruleset{}, eris.New("extract: ruleset has no rules")
	}

	rs := Ruleset{Name: f.Name, Rules: make([]Rule, 0, len(f.Rules))}
	seen := make(map[string]bool, len(f.Rules))
	for i, rf := range f.Rules {
		if rf.Field == "" {
			return Ruleset{}, eris.Errorf("extract: rule %d has no field", i)
		}
		if seen[rf.Field] {
			return Ruleset{}, eris.Errorf("extract: duplicate field %q", rf.Field)
		}
		seen[rf.Field] = true
		if len(rf.StartMarkers) == 0 || len(rf.EndMarkers) == 0 {
			return Ruleset{}, eris.Errorf("extract: rule %q needs start and end markers", rf.Field)
		}

		r := Rule{
			Field:        rf.Field,
			Require:      rf.Require,
			StartMarkers: rf.StartMarkers,
			EndMarkers:   rf.EndMarkers,
		}
		if rf.Cut != "" {
			re, err := regexp.Compile(rf.Cut)
			if err != nil {
				return Ruleset{}, eris.Wrapf(err, "extract: rule %q cut pattern", rf.Field)
			}
			r.Cut = re
		}
		rs.Rules = append(rs.Rules, r)
	}
	return rs, nil
}
