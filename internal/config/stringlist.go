package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringList is a list of strings that also accepts the historical encodings
// found in older config files: null loads as an empty list and a bare string
// loads as a one-element list.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*l = StringList{}
		return nil
	case trimmed[0] == '"':
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}
	var items []string
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	*l = StringList(items)
	return nil
}

// MarshalJSON always emits a list, never null.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}
