package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray stores a list of strings as a JSON array column. Encoding
// keeps characters like & and < literal so the stored form can be
// matched with a quoted LIKE needle.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(a)); err != nil {
		return nil, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}
	if value == nil {
		*a = StringArray{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.StringArray: unsupported Scan type %T", value)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = StringArray{}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return fmt.Errorf("models.StringArray: %w", err)
	}
	*a = arr
	return nil
}
