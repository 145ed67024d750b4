package account

import (
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// ApprovalStatus tracks a tutor profile through admin review.
type ApprovalStatus int16

const (
	ApprovalPending  ApprovalStatus = 0
	ApprovalApproved ApprovalStatus = 1
	ApprovalRejected ApprovalStatus = 2
)

// User is the application-side account row, provisioned after the identity
// provider confirms the email. The provider owns credentials; we own
// everything else.
type User struct {
	UserID     string `gorm:"type:uuid;primaryKey" json:"user_id"`
	Name       string `json:"name"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	DateJoined string `gorm:"type:date;not null" json:"date_joined"`
}

// RoleDetail is one row of the role catalog.
type RoleDetail struct {
	RoleID   policy.Role `gorm:"primaryKey" json:"role_id"`
	RoleName string      `gorm:"not null" json:"role_name"`
}

// RoleAssignment links a user to a role. At most one row per (user, role).
type RoleAssignment struct {
	UserID string      `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleID policy.Role `gorm:"primaryKey" json:"role_id"`
}

// StudentProfile holds the student-only fields.
type StudentProfile struct {
	StudentID     string `gorm:"type:uuid;primaryKey" json:"student_id"`
	StudentNumber string `gorm:"uniqueIndex;not null" json:"student_number"`
	DegreeProgram string `gorm:"not null" json:"degree_program"`
}

// TutorProfile holds the tutor-only fields. New tutors start in
// ApprovalPending until an admin reviews them.
type TutorProfile struct {
	TutorID     string         `gorm:"type:uuid;primaryKey" json:"tutor_id"`
	Description string         `json:"description"`
	Status      ApprovalStatus `gorm:"not null;default:0" json:"status"`
}

func (User) TableName() string           { return "accounts.users" }
func (RoleDetail) TableName() string     { return "accounts.roles" }
func (RoleAssignment) TableName() string { return "accounts.user_roles" }
func (StudentProfile) TableName() string { return "accounts.student_profiles" }
func (TutorProfile) TableName() string   { return "accounts.tutor_profiles" }
