package account

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/catalog"
	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// Profile is the aggregated view of a user: base account plus whichever
// role sub-profiles exist.
type Profile struct {
	User    User            `json:"user"`
	Roles   []policy.Role   `json:"roles"`
	Student *StudentProfile `json:"student,omitempty"`
	Tutor   *TutorView      `json:"tutor,omitempty"`
}

// TutorView is the tutor sub-profile together with its catalog collections.
type TutorView struct {
	TutorProfile
	Subjects     []catalog.Subject      `json:"subjects"`
	Expertise    []string               `json:"expertise"`
	Affiliations []string               `json:"affiliations"`
	Socials      []string               `json:"socials"`
	Availability []catalog.Availability `json:"availability"`
}

// GetProfile assembles the aggregated profile for a user id.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	db := s.db.WithContext(ctx)

	var user User
	if err := db.First(&user, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httpx.NotFound("User not found")
		}
		return nil, httpx.StorageUnavailable(err)
	}

	var assignments []RoleAssignment
	if err := db.Find(&assignments, "user_id = ?", userID).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}

	profile := &Profile{User: user, Roles: []policy.Role{}}
	for _, a := range assignments {
		profile.Roles = append(profile.Roles, a.RoleID)
	}

	var student StudentProfile
	err := db.First(&student, "student_id = ?", userID).Error
	if err == nil {
		profile.Student = &student
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, httpx.StorageUnavailable(err)
	}

	var tutor TutorProfile
	err = db.First(&tutor, "tutor_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profile, nil
	}
	if err != nil {
		return nil, httpx.StorageUnavailable(err)
	}

	view, err := s.tutorView(ctx, tutor)
	if err != nil {
		return nil, err
	}
	profile.Tutor = view
	return profile, nil
}

func (s *Service) tutorView(ctx context.Context, tutor TutorProfile) (*TutorView, error) {
	db := s.db.WithContext(ctx)
	view := &TutorView{TutorProfile: tutor}

	if err := db.Preload("Topics").
		Where("tutor_id = ?", tutor.TutorID).
		Order("subject_name ASC").
		Find(&view.Subjects).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}

	var expertise []catalog.Expertise
	if err := db.Find(&expertise, "tutor_id = ?", tutor.TutorID).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}
	view.Expertise = []string{}
	for _, e := range expertise {
		view.Expertise = append(view.Expertise, e.Expertise)
	}

	var affiliations []catalog.Affiliation
	if err := db.Find(&affiliations, "tutor_id = ?", tutor.TutorID).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}
	view.Affiliations = []string{}
	for _, a := range affiliations {
		view.Affiliations = append(view.Affiliations, a.Affiliation)
	}

	var socials []catalog.Social
	if err := db.Find(&socials, "tutor_id = ?", tutor.TutorID).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}
	view.Socials = []string{}
	for _, so := range socials {
		view.Socials = append(view.Socials, so.Social)
	}

	if err := db.Where("tutor_id = ?", tutor.TutorID).
		Order("availability ASC, available_time_from ASC").
		Find(&view.Availability).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}

	return view, nil
}

// ListTutors returns approved tutors with their catalogs, for the browse
// page. Admins can pass a different status to review the queue.
func (s *Service) ListTutors(ctx context.Context, status ApprovalStatus) ([]Profile, error) {
	db := s.db.WithContext(ctx)

	var tutors []TutorProfile
	if err := db.Find(&tutors, "status = ?", status).Error; err != nil {
		return nil, httpx.StorageUnavailable(err)
	}

	profiles := make([]Profile, 0, len(tutors))
	for _, t := range tutors {
		p, err := s.GetProfile(ctx, t.TutorID)
		if err != nil {
			if e, ok := httpx.AsError(err); ok && e.Kind == httpx.KindNotFound {
				// Tutor provisioned on the provider but user row missing;
				// skip rather than fail the listing.
				continue
			}
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

// SetTutorStatus moves a tutor profile through admin review.
func (s *Service) SetTutorStatus(ctx context.Context, tutorID string, status ApprovalStatus) error {
	if status != ApprovalPending && status != ApprovalApproved && status != ApprovalRejected {
		return httpx.InvalidInput("Invalid status")
	}

	result := s.db.WithContext(ctx).Model(&TutorProfile{}).
		Where("tutor_id = ?", tutorID).
		Update("status", status)
	if result.Error != nil {
		return httpx.StorageUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return httpx.NotFound("Tutor not found")
	}
	return nil
}
