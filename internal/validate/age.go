package validate

import (
	"encoding/json"
	"math"
)

const (
	MinAge = 20
	MaxAge = 100
)

// Age accepts an integral number in [MinAge, MaxAge]. Numbers decoded from
// JSON arrive as float64 or json.Number; anything else is rejected.
func Age(raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, ageError()
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, ageError()
		}
		n = int(i)
	default:
		return 0, ageError()
	}
	if n < MinAge || n > MaxAge {
		return 0, ageError()
	}
	return n, nil
}

func ageError() *Error {
	return newError("age", "Invalid age. It should be between 20-100.")
}
