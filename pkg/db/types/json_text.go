package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList stores an ordered list of strings as a JSON array column.
type StringList []string

func (l *StringList) Scan(src any) error {
	raw, err := rawJSON(src, "StringList")
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("StringList: decode: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = StringList(out)
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// StringMap stores named free-text answers as a JSON object column.
type StringMap map[string]string

func (m *StringMap) Scan(src any) error {
	raw, err := rawJSON(src, "StringMap")
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*m = StringMap{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("StringMap: decode: %w", err)
	}
	*m = StringMap(out)
	return nil
}

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func rawJSON(src any, typeName string) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported Scan type %T", typeName, src)
	}
}
