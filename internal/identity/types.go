package identity

import (
	"encoding/json"
	"time"

	"github.com/tutorly/tutorly-backend/internal/policy"
)

// Identity is the verified caller the rest of the backend works with. The
// adapter is the only place provider responses are unpacked; everything past
// this boundary sees typed fields only.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []policy.Role
}

// RoleTags tolerates the provider storing the role claim as either a single
// string or a list of strings; older accounts carry the scalar form.
type RoleTags []string

func (r *RoleTags) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*r = list
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*r = []string{single}
	return nil
}

// UserMetadata mirrors the signup metadata the provider stores per user.
type UserMetadata struct {
	Name          string   `json:"name,omitempty"`
	Role          RoleTags `json:"role,omitempty"`
	StudentNumber string   `json:"student_number,omitempty"`
	DegreeProgram string   `json:"degree_program,omitempty"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status,omitempty"`
	Subjects      []string `json:"subject,omitempty"`
	Expertise     []string `json:"expertise,omitempty"`
	Affiliation   []string `json:"affiliation,omitempty"`
	Socials       []string `json:"socials,omitempty"`
	Availability  []string `json:"availability,omitempty"`
	TimeFrom      []string `json:"available_time_from,omitempty"`
	TimeTo        []string `json:"available_time_to,omitempty"`
}

// ProviderUser is a user record as the provider's admin API returns it.
type ProviderUser struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	CreatedAt        time.Time    `json:"created_at"`
	EmailConfirmedAt *time.Time   `json:"email_confirmed_at"`
	UserMetadata     UserMetadata `json:"user_metadata"`
}

// TokenPair is the result of a password or refresh grant.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         ProviderUser `json:"user"`
}
