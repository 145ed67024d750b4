package catalog

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/db"
)

// Init creates the catalog schema and tables.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "catalog"); err != nil {
		return fmt.Errorf("ensure catalog schema: %w", err)
	}

	if err := d.AutoMigrate(&Subject{}, &Topic{}, &Expertise{}, &Affiliation{}, &Social{}, &Availability{}); err != nil {
		return fmt.Errorf("migrate catalog tables: %w", err)
	}

	return nil
}
