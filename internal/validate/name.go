package validate

import "strings"

// Name trims a person name and rejects blank values.
func Name(raw string) (string, error) {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return "", newError("person_name", "Invalid name. Please provide the name of the person the appointment is for.")
	}
	return value, nil
}
