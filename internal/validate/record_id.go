package validate

import "strings"

// RecordIDLength is the fixed width of SC_<phone>_<dd>_<hh>_<mm>.
const RecordIDLength = 23

// RecordID is a record identifier that has passed RecordID validation.
type RecordID string

func (id RecordID) String() string {
	return string(id)
}

// RecordIDFrom checks the SC_<11 digit phone>_<6 char date-time code> shape.
// Failures always return ErrInvalidRecordID.
func RecordIDFrom(raw any) (RecordID, error) {
	value, ok := raw.(string)
	if !ok || len(value) != RecordIDLength {
		return "", ErrInvalidRecordID
	}
	parts := strings.Split(value, "_")
	if len(parts) != 5 {
		return "", ErrInvalidRecordID
	}
	if parts[0] != "SC" || len(parts[1]) != phoneDigits {
		return "", ErrInvalidRecordID
	}
	if len(parts[2])+len(parts[3])+len(parts[4]) != 6 {
		return "", ErrInvalidRecordID
	}
	return RecordID(value), nil
}
