package entity

import "time"

// Application is a course enrollment request. It gets its own daily numbered
// sequence under the KURS prefix, separate from order numbers.
type Application struct {
	ID         string    `json:"id"`
	Number     string    `json:"application_number"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	CourseName string    `json:"course_name"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
}
