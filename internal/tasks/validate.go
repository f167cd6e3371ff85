package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ValidationError is a client mistake in the request body. Its message is
// sent back verbatim with a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var requiredFields = []string{"name", "frequency", "assigned_to", "points"}

// DecodeTaskInput parses and validates a create/update body.
func DecodeTaskInput(body io.Reader) (TaskInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return TaskInput{}, err
	}

	for _, k := range requiredFields {
		if _, ok := fields[k]; !ok {
			return TaskInput{}, invalid("missing fields: %s are required", strings.Join(requiredFields, ", "))
		}
	}

	var in TaskInput
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"name", &in.Name},
		{"frequency", &in.Frequency},
		{"assigned_to", &in.AssignedTo},
	} {
		s, err := requiredString(f.key, fields[f.key])
		if err != nil {
			return TaskInput{}, err
		}
		*f.dst = s
	}

	if in.Points, err = parsePoints(fields["points"]); err != nil {
		return TaskInput{}, err
	}

	in.Description = optionalText(fields["description"])
	return in, nil
}

// DecodeCompletedBy returns the completedBy value of a complete request.
func DecodeCompletedBy(body io.Reader) (string, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return "", err
	}
	raw, ok := fields["completedBy"]
	if !ok || isFalsy(raw) {
		return "", invalid("completedBy is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// any other truthy JSON value is accepted as-is
		return string(raw), nil
	}
	return s, nil
}

func decodeObject(body io.Reader) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(body)
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, invalid("invalid json")
	}
	// the object must be the whole body
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, invalid("invalid json")
	}
	return fields, nil
}

func requiredString(key string, raw json.RawMessage) (string, error) {
	if isFalsy(raw) {
		return "", invalid("required fields are empty: %s", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalid("%s must be a string", key)
	}
	return s, nil
}

// isFalsy reports whether raw is null, false, 0, "" or an empty array/object.
func isFalsy(raw json.RawMessage) bool {
	switch v := decodeAny(raw).(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// parsePoints accepts integers, numbers (truncated toward zero), numeric
// strings and booleans.
func parsePoints(raw json.RawMessage) (int64, error) {
	bad := invalid("points must be an integer")

	switch v := decodeAny(raw).(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) >= math.MaxInt64 {
			return 0, bad
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, bad
		}
		return n, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, bad
}

func optionalText(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	switch v := decodeAny(raw).(type) {
	case nil:
		return nil
	case string:
		return &v
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		s := string(raw)
		return &s
	}
	s := buf.String()
	return &s
}

func decodeAny(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
