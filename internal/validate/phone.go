package validate

import (
	"strings"
)

const phoneDigits = 11

// PhonePrefixes lists the operator prefixes a customer number may start with.
var PhonePrefixes = []string{"013", "017", "018", "019", "015", "016"}

// Phone checks that raw is an 11 digit local mobile number with a known
// operator prefix. Every violated rule is reported in one message.
func Phone(raw string) (string, error) {
	value := strings.TrimSpace(raw)

	var problems []string
	if !allDigits(value) || len(value) != phoneDigits {
		problems = append(problems, "It must have exactly 11 digits.")
	}
	if !hasPhonePrefix(value) {
		problems = append(problems, "It must start with one of the following prefixes: "+strings.Join(PhonePrefixes, ", ")+".")
	}
	if len(problems) > 0 {
		return "", newError("phone_number", "Invalid phone number. "+strings.Join(problems, " "))
	}
	return value, nil
}

func hasPhonePrefix(value string) bool {
	for _, prefix := range PhonePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
