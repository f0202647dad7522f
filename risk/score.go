package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is the overall risk classification of a profile.
type Tier string

const (
	TierHealthy  Tier = "Healthy"
	TierModerate Tier = "Moderate"
	TierHigh     Tier = "High"
)

// Label is the caregiver facing wording of the tier.
func (t Tier) Label() string {
	switch t {
	case TierHigh:
		return "High Risk: Immediate Action Required"
	case TierModerate:
		return "Moderate Attention"
	default:
		return "Healthy Baseline"
	}
}

// Thresholds bound the Healthy and Moderate tiers (inclusive).
type Thresholds struct {
	HealthyMax  int `json:"healthyMax" yaml:"healthyMax"`
	ModerateMax int `json:"moderateMax" yaml:"moderateMax"`
}

// Table holds the scoring constants. The zero value is not usable; start from Default().
type Table struct {
	Categories []CategoryDef `json:"categories"`
	Thresholds Thresholds    `json:"thresholds"`
}

func Default() Table {
	cats := make([]CategoryDef, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return Table{
		Categories: cats,
		Thresholds: Thresholds{HealthyMax: DefaultHealthyMax, ModerateMax: DefaultModerateMax},
	}
}

// CategoryScore is one row of a scored profile.
type CategoryScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Max   int    `json:"max"`
}

// Profile is the derived view of a set of answers.
type Profile struct {
	Answers    map[string]string `json:"answers"`
	Categories []CategoryScore   `json:"categories"`
	Total      int               `json:"total"`
	MaxTotal   int               `json:"maxTotal"`
	Tier       Tier              `json:"riskTier"`
	RiskLabel  string            `json:"riskLevel"`
	Answered   int               `json:"answered"`
	Complete   bool              `json:"complete"`
}

// Score computes a profile with the default table.
func Score(answers map[string]string) Profile {
	return Default().Score(answers)
}

// Score computes category scores, total and tier. Missing or unknown answers count as 0.
func (t Table) Score(answers map[string]string) Profile {
	p := Profile{
		Answers:    make(map[string]string, len(answers)),
		Categories: make([]CategoryScore, 0, len(t.Categories)),
	}
	for k, v := range answers {
		p.Answers[k] = v
	}
	for _, c := range t.Categories {
		cs := CategoryScore{Name: c.Name, Max: c.Max}
		for _, qid := range c.Questions {
			cs.Score += answerScore(qid, answers[qid])
		}
		p.Categories = append(p.Categories, cs)
		p.Total += cs.Score
		p.MaxTotal += c.Max
	}
	p.Tier = t.Tier(p.Total)
	p.RiskLabel = p.Tier.Label()
	for _, q := range Questions {
		if _, ok := answers[q.ID]; ok {
			p.Answered++
		}
	}
	p.Complete = p.Answered >= len(Questions)
	return p
}

// Tier classifies a total against the table thresholds.
func (t Table) Tier(total int) Tier {
	switch {
	case total <= t.Thresholds.HealthyMax:
		return TierHealthy
	case total <= t.Thresholds.ModerateMax:
		return TierModerate
	default:
		return TierHigh
	}
}

func answerScore(qid, label string) int {
	if label == "" {
		return 0
	}
	q, ok := findQuestion(qid)
	if !ok {
		return 0
	}
	for _, o := range q.Options {
		if o.Label == label {
			return o.Score
		}
	}
	return 0
}

// Validate reports the first answer that names an unknown question or option.
func Validate(answers map[string]string) error {
	for qid, label := range answers {
		q, ok := findQuestion(qid)
		if !ok {
			return fmt.Errorf("unknown question %q", qid)
		}
		found := false
		for _, o := range q.Options {
			if o.Label == label {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("question %s: unknown option %q", qid, label)
		}
	}
	return nil
}

// Context serializes the profile into the clinical context injected into prompts.
func (p Profile) Context() string {
	cats, _ := json.Marshal(p.Categories)
	answers, _ := json.Marshal(p.Answers)
	var b strings.Builder
	fmt.Fprintf(&b, "Scores: %s\n", cats)
	fmt.Fprintf(&b, "Total Risk: %s (%d/%d)\n", p.RiskLabel, p.Total, p.MaxTotal)
	fmt.Fprintf(&b, "User Answers: %s", answers)
	return b.String()
}

// overrides is the YAML shape accepted by LoadTable.
type overrides struct {
	Thresholds  *Thresholds    `yaml:"thresholds"`
	CategoryMax map[string]int `yaml:"categoryMax"`
}

// LoadTable reads threshold and category max overrides from a YAML file.
// An empty path returns the default table.
func LoadTable(path string) (Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read scoring file: %w", err)
	}
	return ParseTable(b)
}

// ParseTable applies YAML overrides on top of the default table.
func ParseTable(b []byte) (Table, error) {
	t := Default()
	var o overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return t, fmt.Errorf("parse scoring file: %w", err)
	}
	if o.Thresholds != nil {
		t.Thresholds = *o.Thresholds
	}
	for name, limit := range o.CategoryMax {
		found := false
		for i := range t.Categories {
			if strings.EqualFold(t.Categories[i].Name, name) {
				t.Categories[i].Max = limit
				found = true
			}
		}
		if !found {
			return t, fmt.Errorf("unknown category %q", name)
		}
	}
	if t.Thresholds.HealthyMax < 0 || t.Thresholds.ModerateMax <= t.Thresholds.HealthyMax {
		return t, fmt.Errorf("invalid thresholds: healthyMax=%d moderateMax=%d", t.Thresholds.HealthyMax, t.Thresholds.ModerateMax)
	}
	return t, nil
}
