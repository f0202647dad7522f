package history

import (
	"encoding/json"

	"github.com/google/uuid"
)

// assignIDs upgrades v1 histories, written by clients that kept records without ids.
func assignIDs(data json.RawMessage) (json.RawMessage, error) {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for _, entry := range list {
		if id, ok := entry["id"]; ok && string(id) != `""` && string(id) != "null" {
			continue
		}
		b, _ := json.Marshal(uuid.NewString())
		entry["id"] = b
	}
	return json.Marshal(list)
}
