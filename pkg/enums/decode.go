package enums

import (
	"database/sql/driver"
	"fmt"
)

// DecodeError is returned when a stored or submitted value is not part of a closed enum.
type DecodeError struct {
	Enum  string
	Value string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Enum, e.Value)
}

func scanText(enum string, src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", &DecodeError{Enum: enum, Value: "<null>"}
	default:
		return "", &DecodeError{Enum: enum, Value: fmt.Sprintf("%v", v)}
	}
}

func textValue(enum, value string, valid bool) (driver.Value, error) {
	if !valid {
		return nil, &DecodeError{Enum: enum, Value: value}
	}
	return value, nil
}
