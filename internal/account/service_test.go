package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// fakeProvider is an in-memory stand-in for the identity provider. Accounts
// are keyed by email.
type fakeProvider struct {
	users       map[string]*identity.ProviderUser
	passwords   map[string]string
	signupCalls int
	updateCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:     map[string]*identity.ProviderUser{},
		passwords: map[string]string{},
	}
}

func (f *fakeProvider) SignUp(_ context.Context, email, password string, meta identity.UserMetadata) (identity.ProviderUser, error) {
	f.signupCalls++
	user := identity.ProviderUser{ID: "prov-" + email, Email: email, UserMetadata: meta}
	f.users[email] = &user
	f.passwords[email] = password
	return user, nil
}

func (f *fakeProvider) PasswordGrant(_ context.Context, email, password string) (identity.TokenPair, error) {
	user, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return identity.TokenPair{}, httpx.Unauthorized("Authentication failed")
	}
	return identity.TokenPair{
		AccessToken:  "access-" + user.ID,
		RefreshToken: "refresh-" + user.ID,
		User:         *user,
	}, nil
}

func (f *fakeProvider) RefreshGrant(_ context.Context, refreshToken string) (identity.TokenPair, error) {
	if refreshToken == "revoked" {
		return identity.TokenPair{}, httpx.Unauthorized("Token refresh failed")
	}
	return identity.TokenPair{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		User:         identity.ProviderUser{ID: "prov-user"},
	}, nil
}

func (f *fakeProvider) FindUserByEmail(_ context.Context, email string) (*identity.ProviderUser, error) {
	return f.users[email], nil
}

func (f *fakeProvider) UpdateUserMetadata(_ context.Context, userID string, meta identity.UserMetadata) error {
	f.updateCalls++
	for _, u := range f.users {
		if u.ID == userID {
			u.UserMetadata = meta
			return nil
		}
	}
	return httpx.NotFound("User not found")
}

func newTestService() (*Service, *fakeProvider) {
	provider := newFakeProvider()
	return NewService(nil, provider, zap.NewNop()), provider
}

func studentSignup() StudentSignup {
	return StudentSignup{
		Name:          "Sam",
		Email:         "sam@example.com",
		Password:      "hunter22",
		StudentNumber: "2021-00123",
		DegreeProgram: "BS Computer Science",
	}
}

func TestSignupStudent_NewAccount(t *testing.T) {
	svc, provider := newTestService()

	msg, err := svc.SignupStudent(context.Background(), studentSignup())
	require.NoError(t, err)
	assert.Contains(t, msg, "registered successfully")
	assert.Equal(t, 1, provider.signupCalls)

	user := provider.users["sam@example.com"]
	require.NotNil(t, user)
	assert.Equal(t, identity.RoleTags{"0"}, user.UserMetadata.Role)
	assert.Equal(t, "2021-00123", user.UserMetadata.StudentNumber)
}

func TestSignupStudent_Validation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(*StudentSignup)
	}{
		{"missing email", func(in *StudentSignup) { in.Email = "" }},
		{"missing password", func(in *StudentSignup) { in.Password = "" }},
		{"missing student number", func(in *StudentSignup) { in.StudentNumber = "" }},
		{"missing degree program", func(in *StudentSignup) { in.DegreeProgram = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := studentSignup()
			tt.mutate(&in)
			_, err := svc.SignupStudent(context.Background(), in)
			e, ok := httpx.AsError(err)
			require.True(t, ok)
			assert.Equal(t, httpx.KindInvalidInput, e.Kind)
		})
	}
}

func TestSignupStudent_MergesRoleIntoExistingTutor(t *testing.T) {
	svc, provider := newTestService()

	// The email already belongs to a tutor account.
	provider.users["sam@example.com"] = &identity.ProviderUser{
		ID:           "prov-sam",
		Email:        "sam@example.com",
		UserMetadata: identity.UserMetadata{Role: identity.RoleTags{"1"}},
	}

	msg, err := svc.SignupStudent(context.Background(), studentSignup())
	require.NoError(t, err)
	assert.Contains(t, msg, "added to existing account")
	assert.Equal(t, 0, provider.signupCalls, "no second provider account")
	assert.Equal(t, 1, provider.updateCalls)
	assert.Equal(t, identity.RoleTags{"1", "0"}, provider.users["sam@example.com"].UserMetadata.Role)
}

func TestSignupStudent_AlreadyStudent(t *testing.T) {
	svc, provider := newTestService()

	provider.users["sam@example.com"] = &identity.ProviderUser{
		ID:           "prov-sam",
		Email:        "sam@example.com",
		UserMetadata: identity.UserMetadata{Role: identity.RoleTags{"0"}},
	}

	_, err := svc.SignupStudent(context.Background(), studentSignup())
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindConflict, e.Kind)
}

func TestSignupTutor_NewAccount(t *testing.T) {
	svc, provider := newTestService()

	msg, err := svc.SignupTutor(context.Background(), TutorSignup{
		Name:         "Riley",
		Email:        "riley@example.com",
		Password:     "hunter22",
		Description:  "Math tutor",
		Subjects:     []string{"Algebra"},
		Availability: []string{"2025-01-10"},
		TimeFrom:     []string{"09:00"},
		TimeTo:       []string{"12:00"},
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "registered successfully")

	user := provider.users["riley@example.com"]
	require.NotNil(t, user)
	assert.Equal(t, identity.RoleTags{"1"}, user.UserMetadata.Role)
	// New tutors start unapproved.
	assert.Equal(t, "0", user.UserMetadata.Status)
}

func TestSignupTutor_AvailabilityLengthMismatch(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SignupTutor(context.Background(), TutorSignup{
		Email:        "riley@example.com",
		Password:     "hunter22",
		Availability: []string{"2025-01-10", "2025-01-11"},
		TimeFrom:     []string{"09:00"},
		TimeTo:       []string{"12:00", "13:00"},
	})
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindInvalidInput, e.Kind)
}

func TestLogin_RoleChecked(t *testing.T) {
	svc, provider := newTestService()
	provider.users["sam@example.com"] = &identity.ProviderUser{
		ID:           "prov-sam",
		Email:        "sam@example.com",
		UserMetadata: identity.UserMetadata{Role: identity.RoleTags{"0"}},
	}
	provider.passwords["sam@example.com"] = "hunter22"

	resp, err := svc.Login(context.Background(), policy.RoleStudent, "sam@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "prov-sam", resp.UID)
	assert.NotEmpty(t, resp.AccessToken)

	// Same credentials on the tutor portal fail with the same generic
	// message as a wrong password.
	_, err = svc.Login(context.Background(), policy.RoleTutor, "sam@example.com", "hunter22")
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindUnauthorized, e.Kind)
	assert.Equal(t, "Authentication failed", e.Message)
}

func TestLogin_BadPassword(t *testing.T) {
	svc, provider := newTestService()
	provider.users["sam@example.com"] = &identity.ProviderUser{
		ID:           "prov-sam",
		UserMetadata: identity.UserMetadata{Role: identity.RoleTags{"0"}},
	}
	provider.passwords["sam@example.com"] = "hunter22"

	_, err := svc.Login(context.Background(), policy.RoleStudent, "sam@example.com", "wrong")
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindUnauthorized, e.Kind)
	assert.Equal(t, "Authentication failed", e.Message)
}

func TestRefresh(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.Refresh(context.Background(), "valid-refresh")
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", resp.AccessToken)
	assert.Equal(t, "rotated-refresh", resp.RefreshToken)

	_, err = svc.Refresh(context.Background(), "revoked")
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindUnauthorized, e.Kind)
}

func TestVerifyEmail_UnknownUser(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.VerifyEmail(context.Background(), "nobody@example.com")
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindNotFound, e.Kind)
}

func TestVerifyEmail_NotYetConfirmed(t *testing.T) {
	svc, provider := newTestService()
	provider.users["sam@example.com"] = &identity.ProviderUser{
		ID:    "prov-sam",
		Email: "sam@example.com",
	}

	msg, err := svc.VerifyEmail(context.Background(), "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Email not yet verified", msg)
}

func TestVerifyEmail_EmptyEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.VerifyEmail(context.Background(), "")
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindInvalidInput, e.Kind)
}
