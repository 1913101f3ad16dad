// Package textutil holds small text normalization helpers shared across
// the platform adapters.
package textutil

import "strings"

// NormalizeStringMap returns a copy of values with keys and values trimmed.
// Entries whose trimmed key is empty are dropped; a map with nothing left
// collapses to nil so callers can treat it as absent. FCM rejects messages
// carrying blank data keys, which is why the push sender runs payloads
// through here.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
