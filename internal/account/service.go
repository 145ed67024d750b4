package account

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/catalog"
	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// ProviderClient is the slice of the identity provider the account service
// needs. The concrete implementation is identity.Client.
type ProviderClient interface {
	SignUp(ctx context.Context, email, password string, meta identity.UserMetadata) (identity.ProviderUser, error)
	PasswordGrant(ctx context.Context, email, password string) (identity.TokenPair, error)
	RefreshGrant(ctx context.Context, refreshToken string) (identity.TokenPair, error)
	FindUserByEmail(ctx context.Context, email string) (*identity.ProviderUser, error)
	UpdateUserMetadata(ctx context.Context, userID string, meta identity.UserMetadata) error
}

// Service handles signup/login delegation and post-verification
// provisioning of the application rows.
type Service struct {
	db       *gorm.DB
	provider ProviderClient
	logger   *zap.Logger
}

func NewService(db *gorm.DB, provider ProviderClient, logger *zap.Logger) *Service {
	return &Service{db: db, provider: provider, logger: logger}
}

// StudentSignup is the student registration payload.
type StudentSignup struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	StudentNumber string `json:"student_number"`
	DegreeProgram string `json:"degree_program"`
}

// TutorSignup is the tutor registration payload, carrying the initial
// catalog collections the tutor fills in on the signup form.
type TutorSignup struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Description  string   `json:"description"`
	Subjects     []string `json:"subjects"`
	Expertise    []string `json:"expertise"`
	Affiliation  []string `json:"affiliation"`
	Socials      []string `json:"socials"`
	Availability []string `json:"availability"`
	TimeFrom     []string `json:"available_time_from"`
	TimeTo       []string `json:"available_time_to"`
}

// SignupStudent registers a student with the provider, or merges the student
// role into an existing account so one email can hold both roles.
func (s *Service) SignupStudent(ctx context.Context, in StudentSignup) (string, error) {
	if in.Email == "" || in.Password == "" {
		return "", httpx.InvalidInput("email and password are required")
	}
	if in.StudentNumber == "" || in.DegreeProgram == "" {
		return "", httpx.InvalidInput("student_number and degree_program are required")
	}

	existing, err := s.provider.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return "", httpx.StorageUnavailable(err)
	}

	if existing != nil {
		meta := existing.UserMetadata
		if hasTag(meta.Role, policy.RoleStudent) {
			return "", httpx.Conflict("User is already a student")
		}
		meta.Role = append(meta.Role, policy.RoleStudent.Tag())
		meta.StudentNumber = in.StudentNumber
		meta.DegreeProgram = in.DegreeProgram
		if err := s.provider.UpdateUserMetadata(ctx, existing.ID, meta); err != nil {
			return "", httpx.StorageUnavailable(err)
		}
		return "Signup successful. Student role added to existing account.", nil
	}

	_, err = s.provider.SignUp(ctx, in.Email, in.Password, identity.UserMetadata{
		Name:          in.Name,
		Role:          identity.RoleTags{policy.RoleStudent.Tag()},
		StudentNumber: in.StudentNumber,
		DegreeProgram: in.DegreeProgram,
	})
	if err != nil {
		return "", httpx.InvalidInput("Signup failed")
	}
	return "Student registered successfully. Email verification sent.", nil
}

// SignupTutor registers a tutor with the provider, or merges the tutor role
// into an existing account.
func (s *Service) SignupTutor(ctx context.Context, in TutorSignup) (string, error) {
	if in.Email == "" || in.Password == "" {
		return "", httpx.InvalidInput("email and password are required")
	}
	if len(in.Availability) != len(in.TimeFrom) || len(in.Availability) != len(in.TimeTo) {
		return "", httpx.InvalidInput("availability lists must have equal lengths")
	}

	meta := identity.UserMetadata{
		Name:         in.Name,
		Role:         identity.RoleTags{policy.RoleTutor.Tag()},
		Description:  in.Description,
		Status:       strconv.Itoa(int(ApprovalPending)),
		Subjects:     in.Subjects,
		Expertise:    in.Expertise,
		Affiliation:  in.Affiliation,
		Socials:      in.Socials,
		Availability: in.Availability,
		TimeFrom:     in.TimeFrom,
		TimeTo:       in.TimeTo,
	}

	existing, err := s.provider.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return "", httpx.StorageUnavailable(err)
	}

	if existing != nil {
		merged := existing.UserMetadata
		if hasTag(merged.Role, policy.RoleTutor) {
			return "", httpx.Conflict("User is already a tutor")
		}
		merged.Role = append(merged.Role, policy.RoleTutor.Tag())
		merged.Description = in.Description
		merged.Status = meta.Status
		merged.Subjects = in.Subjects
		merged.Expertise = in.Expertise
		merged.Affiliation = in.Affiliation
		merged.Socials = in.Socials
		merged.Availability = in.Availability
		merged.TimeFrom = in.TimeFrom
		merged.TimeTo = in.TimeTo
		if err := s.provider.UpdateUserMetadata(ctx, existing.ID, merged); err != nil {
			return "", httpx.StorageUnavailable(err)
		}
		return "Signup successful. Tutor role added to existing account.", nil
	}

	if _, err := s.provider.SignUp(ctx, in.Email, in.Password, meta); err != nil {
		return "", httpx.InvalidInput("Signup failed")
	}
	return "Tutor registered successfully. Email verification sent.", nil
}

// LoginResponse is what all login and refresh calls return.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UID          string `json:"uid"`
}

// Login exchanges credentials with the provider and checks that the account
// holds the role the caller logged in as. The failure message never says
// which check failed.
func (s *Service) Login(ctx context.Context, role policy.Role, email, password string) (*LoginResponse, error) {
	pair, err := s.provider.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if !hasTag(pair.User.UserMetadata.Role, role) {
		return nil, httpx.Unauthorized("Authentication failed")
	}

	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UID:          pair.User.ID,
	}, nil
}

// Refresh rotates a refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	pair, err := s.provider.RefreshGrant(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UID:          pair.User.ID,
	}, nil
}

// VerifyEmail provisions the application rows for a provider account once
// its email is confirmed. Safe to call repeatedly: existing rows are updated
// in place, missing ones are created.
func (s *Service) VerifyEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", httpx.InvalidInput("email is required")
	}

	user, err := s.provider.FindUserByEmail(ctx, email)
	if err != nil {
		return "", httpx.StorageUnavailable(err)
	}
	if user == nil {
		return "", httpx.NotFound("User not found")
	}
	if user.EmailConfirmedAt == nil {
		return "Email not yet verified", nil
	}

	if err := s.provision(ctx, user); err != nil {
		return "", err
	}
	return "Account was successfully created", nil
}

// provision writes the user row, role assignments and role sub-profiles in
// one transaction, pulling everything from the provider's metadata.
func (s *Service) provision(ctx context.Context, user *identity.ProviderUser) error {
	meta := user.UserMetadata
	roles := policy.ParseTags(meta.Role)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := User{
			UserID:     user.ID,
			Name:       meta.Name,
			Email:      user.Email,
			DateJoined: user.CreatedAt.Format("2006-01-02"),
		}
		if err := tx.Where(User{UserID: user.ID}).Assign(row).FirstOrCreate(&User{}).Error; err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		for _, role := range roles {
			assignment := RoleAssignment{UserID: user.ID, RoleID: role}
			if err := tx.Where(assignment).FirstOrCreate(&RoleAssignment{}).Error; err != nil {
				return fmt.Errorf("assign role %s: %w", role, err)
			}
		}

		if policy.HasRole(roles, policy.RoleStudent) {
			profile := StudentProfile{
				StudentID:     user.ID,
				StudentNumber: meta.StudentNumber,
				DegreeProgram: meta.DegreeProgram,
			}
			if err := tx.Where(StudentProfile{StudentID: user.ID}).Assign(profile).FirstOrCreate(&StudentProfile{}).Error; err != nil {
				return fmt.Errorf("upsert student profile: %w", err)
			}
		}

		if policy.HasRole(roles, policy.RoleTutor) {
			if err := s.provisionTutor(tx, user); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return httpx.StorageUnavailable(err)
	}

	s.logger.Info("Account provisioned",
		zap.String("user_id", user.ID),
		zap.Int("roles", len(roles)))
	return nil
}

// provisionTutor creates the tutor profile and the initial catalog
// collections the tutor filled in at signup. Existing collections are left
// alone; signup metadata only seeds a brand-new tutor.
func (s *Service) provisionTutor(tx *gorm.DB, user *identity.ProviderUser) error {
	meta := user.UserMetadata

	var existing TutorProfile
	err := tx.First(&existing, "tutor_id = ?", user.ID).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("check tutor profile: %w", err)
	}

	profile := TutorProfile{
		TutorID:     user.ID,
		Description: meta.Description,
		Status:      ApprovalPending,
	}
	if err := tx.Create(&profile).Error; err != nil {
		return fmt.Errorf("create tutor profile: %w", err)
	}

	for _, name := range meta.Subjects {
		subject := catalog.Subject{SubjectID: uuid.NewString(), Name: name, TutorID: user.ID}
		if err := tx.Create(&subject).Error; err != nil {
			return fmt.Errorf("create subject %q: %w", name, err)
		}
	}
	for _, e := range meta.Expertise {
		if err := tx.Create(&catalog.Expertise{ID: uuid.NewString(), TutorID: user.ID, Expertise: e}).Error; err != nil {
			return fmt.Errorf("create expertise: %w", err)
		}
	}
	for _, a := range meta.Affiliation {
		if err := tx.Create(&catalog.Affiliation{ID: uuid.NewString(), TutorID: user.ID, Affiliation: a}).Error; err != nil {
			return fmt.Errorf("create affiliation: %w", err)
		}
	}
	for _, so := range meta.Socials {
		if err := tx.Create(&catalog.Social{ID: uuid.NewString(), TutorID: user.ID, Social: so}).Error; err != nil {
			return fmt.Errorf("create social: %w", err)
		}
	}

	if len(meta.Availability) == len(meta.TimeFrom) && len(meta.Availability) == len(meta.TimeTo) {
		for i := range meta.Availability {
			row := catalog.Availability{
				ID:       uuid.NewString(),
				TutorID:  user.ID,
				Date:     meta.Availability[i],
				TimeFrom: meta.TimeFrom[i],
				TimeTo:   meta.TimeTo[i],
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create availability: %w", err)
			}
		}
	}

	return nil
}

func hasTag(tags identity.RoleTags, role policy.Role) bool {
	return policy.HasRole(policy.ParseTags(tags), role)
}
