package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// NullableDate tracks whether a date field was explicitly present in JSON,
// distinguishing "absent" from "set to null".
type NullableDate struct {
	Valid bool
	Value *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableDate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %q (expected %s): %w", raw, DateLayout, err)
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Clone returns a copy of the NullableDate.
func (n NullableDate) Clone() NullableDate {
	if n.Value == nil {
		return NullableDate{Valid: n.Valid}
	}
	copy := *n.Value
	return NullableDate{Valid: n.Valid, Value: &copy}
}
