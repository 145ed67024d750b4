package policy

import (
	"strconv"

	"github.com/tutorly/tutorly-backend/internal/httpx"
)

// Role is the canonical role enumeration. The identity provider hands roles
// back as small-integer strings ("0", "1", "2"); they are converted here,
// once, at the boundary and never compared as strings afterwards.
type Role int

const (
	RoleStudent Role = 0
	RoleTutor   Role = 1
	RoleAdmin   Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTutor:
		return "tutor"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Tag returns the provider-side representation of the role.
func (r Role) Tag() string { return strconv.Itoa(int(r)) }

// ParseTag converts a provider role tag into a Role. Accepts both the
// numeric tags the provider stores and the role names, since older
// provider records carry either.
func ParseTag(tag string) (Role, bool) {
	switch tag {
	case "0", "student":
		return RoleStudent, true
	case "1", "tutor":
		return RoleTutor, true
	case "2", "admin":
		return RoleAdmin, true
	}
	return 0, false
}

// ParseTags converts a list of provider tags, dropping anything unknown.
func ParseTags(tags []string) []Role {
	var roles []Role
	for _, t := range tags {
		if r, ok := ParseTag(t); ok {
			roles = append(roles, r)
		}
	}
	return roles
}

// Allow answers whether a caller holding the given roles may perform an
// operation requiring any of the required roles. Stateless: a pure function
// of its inputs, consulted before any storage write.
func Allow(held []Role, required ...Role) error {
	for _, h := range held {
		for _, req := range required {
			if h == req {
				return nil
			}
		}
	}
	return httpx.PermissionDenied()
}

// HasRole reports whether the role set contains r.
func HasRole(held []Role, r Role) bool {
	return Allow(held, r) == nil
}
