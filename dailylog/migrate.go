package dailylog

import (
	"encoding/json"
	"math"

	"yukti-backend/store"
)

var schema = store.Schema{
	Current:    2,
	Migrations: map[int]store.Migration{1: renameV1Fields},
}

// renameV1Fields upgrades logs written with the meds, mealPlan, activity and hydration
// field names. Logs already using the current names pass through unchanged.
func renameV1Fields(data json.RawMessage) (json.RawMessage, error) {
	var log map[string]json.RawMessage
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, err
	}
	if log == nil {
		log = map[string]json.RawMessage{}
	}
	rename(log, "meds", "medsTaken")

	if raw, ok := log["habits"]; ok {
		var habits map[string]json.RawMessage
		if err := json.Unmarshal(raw, &habits); err == nil && habits != nil {
			rename(habits, "mealPlan", "mealPlanFollowed")
			rename(habits, "activity", "activityMinutes")
			rename(habits, "hydration", "hydrationGlasses")
			for _, k := range []string{"activityMinutes", "hydrationGlasses"} {
				wholeNumber(habits, k)
			}
			b, err := json.Marshal(habits)
			if err != nil {
				return nil, err
			}
			log["habits"] = b
		}
	}
	return json.Marshal(log)
}

func rename(m map[string]json.RawMessage, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; !exists {
		m[to] = v
	}
}

// wholeNumber rounds a numeric field and drops one that is not a number.
func wholeNumber(m map[string]json.RawMessage, key string) {
	raw, ok := m[key]
	if !ok {
		return
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) {
		delete(m, key)
		return
	}
	b, _ := json.Marshal(int(math.Round(f)))
	m[key] = b
}
