package collection

import (
	"encoding/json"
	"os"
)

// dynamicEntry is one monitor definition as stored in the dynamic-config
// file (§4.D: "Collections are loaded at startup from both a static
// configuration and a mutable file-backed 'dynamic' list").
type dynamicEntry struct {
	Name               string `json:"name"`
	TrackDescendants   bool   `json:"track_descendants"`
	LockingScriptRegex string `json:"locking_script_regex"`
}

// loadDynamicFile reads path's monitor list. A missing file is not an
// error — it means no dynamic monitor has been added yet.
func loadDynamicFile(path string) ([]Definition, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []dynamicEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, Definition{
			Name:               e.Name,
			TrackDescendants:   e.TrackDescendants,
			LockingScriptRegex: e.LockingScriptRegex,
		})
	}
	return defs, nil
}

// saveDynamicFile overwrites path with defs, the full dynamic monitor list
// (§4.D: "add/delete at runtime persists to the dynamic file"). A blank
// path disables file persistence.
func saveDynamicFile(path string, defs []Definition) error {
	if path == "" {
		return nil
	}
	entries := make([]dynamicEntry, 0, len(defs))
	for _, d := range defs {
		entries = append(entries, dynamicEntry{
			Name:               d.Name,
			TrackDescendants:   d.TrackDescendants,
			LockingScriptRegex: d.LockingScriptRegex,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
