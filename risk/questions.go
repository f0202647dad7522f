package risk

// Option is one selectable answer of a question.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Score int    `json:"score" yaml:"score"`
}

type Question struct {
	ID      string   `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []Option `json:"options" yaml:"options"`
}

// CategoryDef aggregates the scores of one or more questions.
// Max is only used for relative display.
type CategoryDef struct {
	Name      string   `json:"name" yaml:"name"`
	Questions []string `json:"questions" yaml:"questions"`
	Max       int      `json:"max" yaml:"max"`
}

// Questions is the fifteen point caregiver questionnaire.
var Questions = []Question{
	{ID: "q1", Text: "How old is the member?", Options: []Option{{"Below 40", 0}, {"40-55", 5}, {"56-69", 10}, {"70+", 15}, {"Don’t Know", 5}}},
	{ID: "q2", Text: "Have they been told they have high blood sugar, prediabetes, or diabetes?", Options: []Option{{"No", 0}, {"Prediabetes", 5}, {"Diabetes", 15}, {"Don't Know", 5}}},
	{ID: "q3", Text: "Do they have high BP, Disturbed Cholesterol, or heart issues (stent, bypass, angina)?", Options: []Option{{"No", 0}, {"One Condition", 5}, {"Multiple/Severe", 15}, {"Don't Know", 5}}},
	{ID: "q4", Text: "Do they get tired or breathless doing everyday activities?", Options: []Option{{"Never", 0}, {"Sometimes", 5}, {"Often", 10}, {"Don't Know", 5}}},
	{ID: "q5", Text: "Have they had stroke, tremors (parkinsonism), limb weakness, or slowed movements?", Options: []Option{{"No", 0}, {"Mild signs", 5}, {"Diagnosed/Visible", 10}, {"Don't Know", 5}}},
	{ID: "q6", Text: "Do they often seem confused, forgetful, or unsteady?", Options: []Option{{"No", 0}, {"Sometimes", 5}, {"Often", 10}, {"Don't Know", 5}}},
	{ID: "q7", Text: "Have they been hospitalized or undergone major surgery (heart, brain, spine) or cancer?", Options: []Option{{"No", 0}, {"Once/Minor", 5}, {"Multiple/Major/Cancer", 10}, {"Don't Know", 5}}},
	{ID: "q8", Text: "Do they complain of joint/back/knee pain that limits movement?", Options: []Option{{"No", 0}, {"Sometimes/Mild", 10}, {"Severe/Daily", 20}, {"Don't Know", 5}}},
	{ID: "q9", Text: "Have they had falls or fractures in the last 2 years?", Options: []Option{{"No", 0}, {"Once", 5}, {"Multiple", 10}, {"Don't Know", 5}}},
	{ID: "q10", Text: "Do they need help with stairs, bathing, dressing or getting off the floor?", Options: []Option{{"No", 0}, {"Occasionally", 5}, {"Often", 10}, {"Don't Know", 5}}},
	{ID: "q11", Text: "Do they complain of bloating, acidity, constipation, or gut issues?", Options: []Option{{"No", 0}, {"Occasionally", 5}, {"Frequently", 10}, {"Don't Know", 5}}},
	{ID: "q12", Text: "Do they often seem stressed, anxious, or emotionally low?", Options: []Option{{"No", 0}, {"Sometimes", 5}, {"Often", 10}, {"Don't Know", 5}}},
	{ID: "q13", Text: "Do they sleep poorly, snore loudly or nap excessively?", Options: []Option{{"Good/No", 0}, {"Sometimes", 5}, {"Often/Poor", 10}, {"Don't Know", 5}}},
	{ID: "q14", Text: "Do they usually eat unhealthy foods, eat at odd times, or drink too little water?", Options: []Option{{"No", 0}, {"Sometimes", 5}, {"Often", 10}, {"Don't Know", 5}}},
	{ID: "q15", Text: "Do they smoke, drink often or avoid exercise completely?", Options: []Option{{"None", 0}, {"One habit", 5}, {"Two or more", 10}, {"Don't Know", 5}}},
}

// DefaultCategories is the static question to category assignment.
var DefaultCategories = []CategoryDef{
	{Name: "Metabolic", Questions: []string{"q2"}, Max: 15},
	{Name: "Cardiovascular", Questions: []string{"q3"}, Max: 15},
	{Name: "Cognitive", Questions: []string{"q5", "q6"}, Max: 20},
	{Name: "Muscular", Questions: []string{"q8"}, Max: 20},
	{Name: "Frailty", Questions: []string{"q9", "q10"}, Max: 20},
	{Name: "Digestive", Questions: []string{"q11"}, Max: 10},
	{Name: "Emotional", Questions: []string{"q12"}, Max: 10},
	{Name: "Sleep", Questions: []string{"q13"}, Max: 10},
	{Name: "Lifestyle", Questions: []string{"q14", "q15"}, Max: 20},
	{Name: "Resilience", Questions: []string{"q1", "q4", "q7"}, Max: 35},
}

// Default tier thresholds: totals up to HealthyMax are Healthy, up to ModerateMax Moderate.
const (
	DefaultHealthyMax  = 20
	DefaultModerateMax = 40
)

func findQuestion(id string) (Question, bool) {
	for _, q := range Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
