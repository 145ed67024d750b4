package account

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/db"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// Init creates the accounts schema and tables.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "accounts"); err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}

	if err := d.AutoMigrate(&User{}, &RoleDetail{}, &RoleAssignment{}, &StudentProfile{}, &TutorProfile{}); err != nil {
		return fmt.Errorf("migrate account tables: %w", err)
	}

	return nil
}

// SeedRoles inserts the role catalog rows. Idempotent.
func SeedRoles(d *gorm.DB) error {
	roles := []RoleDetail{
		{RoleID: policy.RoleStudent, RoleName: "student"},
		{RoleID: policy.RoleTutor, RoleName: "tutor"},
		{RoleID: policy.RoleAdmin, RoleName: "admin"},
	}

	for _, role := range roles {
		var existing RoleDetail
		err := d.First(&existing, "role_id = ?", role.RoleID).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("check role %d: %w", role.RoleID, err)
		}
		if err := d.Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %d: %w", role.RoleID, err)
		}
	}
	return nil
}
