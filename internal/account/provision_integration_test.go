package account

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/catalog"
	"github.com/tutorly/tutorly-backend/internal/config"
	"github.com/tutorly/tutorly-backend/internal/db"
	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

// testDB is the shared connection for all integration tests.
var testDB *gorm.DB

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// No database available, run only the unit tests.
		os.Exit(m.Run())
	}

	conn, err := db.Connect(config.DatabaseConfig{
		URL:          databaseURL,
		MaxOpenConns: 5,
		MaxIdleConns: 5,
		MaxLifetime:  5,
	})
	if err != nil {
		os.Exit(m.Run())
	}
	testDB = conn
	dbAvailable = true

	// Provisioning writes catalog rows too, so both schemas must exist.
	if err := Init(testDB); err != nil {
		panic(err)
	}
	if err := catalog.Init(testDB); err != nil {
		panic(err)
	}
	if err := SeedRoles(testDB); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

// confirmedTutorStudent returns a provider user holding both roles with the
// email already confirmed, and registers cleanup for every row provisioning
// may create.
func confirmedTutorStudent(t *testing.T) *identity.ProviderUser {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	userID := uuid.NewString()
	email := "it-" + userID[:8] + "@example.com"
	confirmed := time.Now()

	t.Cleanup(func() {
		testDB.Where("tutor_id = ?", userID).Delete(&catalog.Availability{})
		testDB.Where("tutor_id = ?", userID).Delete(&catalog.Social{})
		testDB.Where("tutor_id = ?", userID).Delete(&catalog.Affiliation{})
		testDB.Where("tutor_id = ?", userID).Delete(&catalog.Expertise{})
		var subjects []catalog.Subject
		testDB.Find(&subjects, "tutor_id = ?", userID)
		for _, s := range subjects {
			testDB.Where("subject_id = ?", s.SubjectID).Delete(&catalog.Topic{})
		}
		testDB.Where("tutor_id = ?", userID).Delete(&catalog.Subject{})
		testDB.Where("tutor_id = ?", userID).Delete(&TutorProfile{})
		testDB.Where("student_id = ?", userID).Delete(&StudentProfile{})
		testDB.Where("user_id = ?", userID).Delete(&RoleAssignment{})
		testDB.Where("user_id = ?", userID).Delete(&User{})
	})

	return &identity.ProviderUser{
		ID:               userID,
		Email:            email,
		CreatedAt:        time.Now(),
		EmailConfirmedAt: &confirmed,
		UserMetadata: identity.UserMetadata{
			Name:          "Integration Tester",
			Role:          identity.RoleTags{"0", "1"},
			StudentNumber: "2021-" + userID[:5],
			DegreeProgram: "BS Mathematics",
			Description:   "Algebra tutor",
			Subjects:      []string{"Algebra"},
			Expertise:     []string{"Calculus"},
			Affiliation:   []string{"Math Society"},
			Socials:       []string{"https://example.com/tutor"},
			Availability:  []string{"2025-01-10"},
			TimeFrom:      []string{"09:00"},
			TimeTo:        []string{"12:00"},
		},
	}
}

func TestVerifyEmailProvisionsAccount(t *testing.T) {
	user := confirmedTutorStudent(t)

	provider := newFakeProvider()
	provider.users[user.Email] = user
	svc := NewService(testDB, provider, zap.NewNop())

	msg, err := svc.VerifyEmail(context.Background(), user.Email)
	require.NoError(t, err)
	assert.Equal(t, "Account was successfully created", msg)

	profile, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.Email, profile.User.Email)
	assert.ElementsMatch(t, []policy.Role{policy.RoleStudent, policy.RoleTutor}, profile.Roles)

	require.NotNil(t, profile.Student)
	assert.Equal(t, "BS Mathematics", profile.Student.DegreeProgram)

	require.NotNil(t, profile.Tutor)
	assert.Equal(t, ApprovalPending, profile.Tutor.Status)
	require.Len(t, profile.Tutor.Subjects, 1)
	assert.Equal(t, "Algebra", profile.Tutor.Subjects[0].Name)
	assert.Equal(t, []string{"Calculus"}, profile.Tutor.Expertise)
	require.Len(t, profile.Tutor.Availability, 1)
}

func TestVerifyEmailIsIdempotent(t *testing.T) {
	user := confirmedTutorStudent(t)

	provider := newFakeProvider()
	provider.users[user.Email] = user
	svc := NewService(testDB, provider, zap.NewNop())

	_, err := svc.VerifyEmail(context.Background(), user.Email)
	require.NoError(t, err)
	_, err = svc.VerifyEmail(context.Background(), user.Email)
	require.NoError(t, err)

	// The second call must not duplicate catalog collections.
	var count int64
	require.NoError(t, testDB.Model(&catalog.Subject{}).
		Where("tutor_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSetTutorStatusLifecycle(t *testing.T) {
	user := confirmedTutorStudent(t)

	provider := newFakeProvider()
	provider.users[user.Email] = user
	svc := NewService(testDB, provider, zap.NewNop())

	_, err := svc.VerifyEmail(context.Background(), user.Email)
	require.NoError(t, err)

	require.NoError(t, svc.SetTutorStatus(context.Background(), user.ID, ApprovalApproved))

	profile, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Tutor)
	assert.Equal(t, ApprovalApproved, profile.Tutor.Status)

	err = svc.SetTutorStatus(context.Background(), user.ID, ApprovalStatus(7))
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindInvalidInput, e.Kind)
}

func TestSetTutorStatusUnknownTutor(t *testing.T) {
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	svc := NewService(testDB, newFakeProvider(), zap.NewNop())

	err := svc.SetTutorStatus(context.Background(), uuid.NewString(), ApprovalApproved)
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindNotFound, e.Kind)
}
