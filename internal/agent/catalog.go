package agent

import (
	"github.com/wolfman30/appointment-agent/internal/appointments"
	"github.com/wolfman30/appointment-agent/internal/conversation"
)

const (
	phoneDescription  = "Customer phone number: exactly 11 digits starting with 013, 017, 018, 019, 015 or 016."
	userIDDescription = "The appointment user id returned when the booking was made, " +
		"e.g. SC_01712345678_10_02_00 (SC, phone number, day of month, hour, minute)."
)

// Catalog lists the operations the model may select.
func Catalog() []conversation.ToolSpec {
	return []conversation.ToolSpec{
		{
			Name:        appointments.OpInsert,
			Description: "Book a new appointment. Use this only when the customer wants to make a new booking and has given all required details.",
			Parameters: []conversation.ToolParameter{
				{Name: "phone_number", Type: "string", Description: phoneDescription, Required: true},
				{Name: "person_name", Type: "string", Description: "Name of the person the appointment is for.", Required: true},
				{Name: "appointment_date", Type: "string", Description: "Appointment date in the format YYYY-MM-DD.", Required: true},
				{Name: "appointment_time", Type: "string", Description: "Appointment start time in 24 hour format HH:MM:SS or HH:MM.", Required: true},
				{Name: "age", Type: "integer", Description: "Age of the person, a whole number between 20 and 100. Optional."},
			},
		},
		{
			Name:        appointments.OpSearch,
			Description: "Look up an existing appointment by its user id. Use this when the customer asks about a booking.",
			Parameters: []conversation.ToolParameter{
				{Name: "user_id", Type: "string", Description: userIDDescription, Required: true},
			},
		},
		{
			Name:        appointments.OpUpdate,
			Description: "Change details of an existing appointment. Pass the user id and only the fields the customer wants to change.",
			Parameters: []conversation.ToolParameter{
				{Name: "user_id", Type: "string", Description: userIDDescription, Required: true},
				{Name: "phone_number", Type: "string", Description: phoneDescription},
				{Name: "person_name", Type: "string", Description: "New name of the person."},
				{Name: "age", Type: "integer", Description: "New age, a whole number between 20 and 100."},
				{Name: "appointment_date", Type: "string", Description: "New date in the format YYYY-MM-DD or DD-MM-YYYY."},
				{Name: "appointment_time", Type: "string", Description: "New start time in 24 hour format HH:MM:SS or HH:MM."},
			},
		},
		{
			Name:        appointments.OpDelete,
			Description: "Cancel an existing appointment by its user id. Use this only when the customer asks to cancel.",
			Parameters: []conversation.ToolParameter{
				{Name: "user_id", Type: "string", Description: userIDDescription, Required: true},
			},
		},
	}
}
