package scheduling

import (
	"time"

	"github.com/lib/pq"
)

// Status is the canonical session status enumeration. Statuses are referenced
// by numeric id everywhere; the label lives only in the seeded catalog row.
type Status int16

const (
	StatusPending   Status = 0
	StatusAccepted  Status = 1
	StatusRejected  Status = 2
	StatusCompleted Status = 3
	StatusCancelled Status = 4
)

// ActiveStatuses is the fixed set of non-terminal statuses that block
// deletion of referenced topics and subjects. Completed, rejected and
// cancelled sessions are history and never block catalog changes.
var ActiveStatuses = []Status{StatusPending, StatusAccepted}

// StatusDetail is one row of the status catalog.
type StatusDetail struct {
	StatusID Status `gorm:"primaryKey" json:"status_id"`
	Label    string `gorm:"column:status;not null" json:"status"`
}

// Session is a tutoring session request. Created by a student in Pending,
// transitioned by the owning tutor, deleted by the requesting student only
// while still Pending.
type Session struct {
	SessionID   string    `gorm:"type:uuid;primaryKey" json:"session_id"`
	Date        string    `gorm:"type:date;not null" json:"date"`
	Time        string    `gorm:"type:time;not null" json:"time"`
	TutorID     string    `gorm:"type:uuid;not null;index" json:"tutor_id"`
	StudentID   string    `gorm:"type:uuid;not null;index" json:"student_id"`
	TopicID     string    `gorm:"type:uuid;not null;index" json:"topic_id"`
	Status      Status    `gorm:"not null;default:0" json:"status"`
	Modality    string    `gorm:"not null" json:"modality"`
	RoomNumber  string    `json:"room_number,omitempty"`
	// Subject and topic names are frozen at creation so a session keeps its
	// labels after the referenced catalog rows are deleted.
	SubjectName string    `gorm:"column:subject_name" json:"subject"`
	TopicTitle  string    `gorm:"column:topic_title" json:"topic"`
	TimeStarted *string   `gorm:"type:time" json:"time_started,omitempty"`
	TimeEnded   *string   `gorm:"type:time" json:"time_ended,omitempty"`
	Duration    *int      `json:"duration,omitempty"` // minutes
	CreatedAt   time.Time `json:"created_at"`
}

// SessionHistory records each status transition together with a denormalized
// snapshot of the participants, so history survives catalog deletions.
type SessionHistory struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  string         `gorm:"type:uuid;not null;index" json:"session_id"`
	FromStatus Status         `gorm:"not null" json:"from_status"`
	ToStatus   Status         `gorm:"not null" json:"to_status"`
	ActorID    string         `gorm:"type:uuid;not null" json:"actor_id"`
	Snapshot   pq.StringArray `gorm:"type:text[]" json:"snapshot"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SessionView is a session joined with the display fields the frontend lists.
type SessionView struct {
	SessionID   string `json:"session_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      Status `json:"status"`
	Modality    string `json:"modality"`
	TutorID     string `json:"tutor_id"`
	StudentID   string `json:"student_id"`
	TutorName   string `json:"tutor_name"`
	StudentName string `json:"student_name"`
	SubjectName string `json:"subject"`
	TopicTitle  string `json:"topic"`
}

func (StatusDetail) TableName() string   { return "scheduling.statuses" }
func (Session) TableName() string        { return "scheduling.sessions" }
func (SessionHistory) TableName() string { return "scheduling.session_history" }

// IsActive reports whether s blocks catalog deletions.
func (s Status) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave s, other than
// bookkeeping on Accepted sessions.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}
