package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload is a notification delivery from the platform.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes of one sending business account.
type Entry struct {
	ID      FlexString `json:"id"`
	Time    int64      `json:"time,omitempty"`
	Changes []Change   `json:"changes"`
}

// Change is one field update. Value stays raw because its shape depends on
// Field and on the platform version.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes an entry field by field. A badly typed id or change
// empties that part instead of failing the whole delivery.
func (e *Entry) UnmarshalJSON(b []byte) error {
	*e = Entry{}

	var raw struct {
		ID      json.RawMessage `json:"id"`
		Time    json.RawMessage `json:"time"`
		Changes json.RawMessage `json:"changes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	if len(raw.ID) > 0 {
		_ = e.ID.UnmarshalJSON(raw.ID)
	}
	if len(raw.Time) > 0 {
		_ = json.Unmarshal(raw.Time, &e.Time)
	}

	var changes []json.RawMessage
	if len(raw.Changes) == 0 || json.Unmarshal(raw.Changes, &changes) != nil {
		return nil
	}
	for _, rc := range changes {
		var c Change
		if err := json.Unmarshal(rc, &c); err != nil {
			continue
		}
		e.Changes = append(e.Changes, c)
	}
	return nil
}

// FlexString accepts both JSON strings and numbers; ids arrive as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*f = ""
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Parse decodes a raw delivery body.
func Parse(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return &p, nil
}

// stringField renders a loosely typed JSON value as an id string.
func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
