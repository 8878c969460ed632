package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventLessonCompleted   EventType = "lesson_completed"
	EventCourseProgress    EventType = "course_progress"
	EventCourseCompleted   EventType = "course_completed"
	EventCertificateIssued EventType = "certificate_issued"
	EventQuizGraded        EventType = "quiz_graded"
)

// Event is a learner-addressed notification emitted after a committed change.
type Event struct {
	Type     EventType       `json:"type"`
	UserID   string          `json:"userId"`
	CourseID string          `json:"courseId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// NewEvent encodes payload into an Event. Unencodable payloads are dropped.
func NewEvent(typ EventType, userID, courseID string, payload any, at time.Time) Event {
	ev := Event{Type: typ, UserID: userID, CourseID: courseID, At: at}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
