package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form json column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m, "JSONMap")
}

// StringList is a json array column of strings.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(src any) error {
	return scanJSON(src, s, "StringList")
}

func scanJSON(src any, dst any, name string) error {
	switch src := src.(type) {
	case []byte:
		if len(src) == 0 {
			return nil
		}
		return json.Unmarshal(src, dst)
	case string:
		if src == "" {
			return nil
		}
		return json.Unmarshal([]byte(src), dst)
	case nil:
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to %s", src, name)
}
