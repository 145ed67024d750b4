package scheduling

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tutorly/tutorly-backend/internal/db"
)

// Init creates the scheduling schema and tables, plus the partial unique
// index that makes the duplicate-pending-request guard atomic under
// concurrent inserts.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "scheduling"); err != nil {
		return fmt.Errorf("ensure scheduling schema: %w", err)
	}

	if err := d.AutoMigrate(&StatusDetail{}, &Session{}, &SessionHistory{}); err != nil {
		return fmt.Errorf("migrate scheduling tables: %w", err)
	}

	if err := d.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_pending_slot
		ON scheduling.sessions (tutor_id, topic_id, student_id, date, time)
		WHERE status = 0`).Error; err != nil {
		return fmt.Errorf("create pending slot index: %w", err)
	}

	return nil
}

// SeedStatuses inserts the status catalog rows. Idempotent.
func SeedStatuses(d *gorm.DB) error {
	statuses := []StatusDetail{
		{StatusID: StatusPending, Label: "pending"},
		{StatusID: StatusAccepted, Label: "accepted"},
		{StatusID: StatusRejected, Label: "rejected"},
		{StatusID: StatusCompleted, Label: "completed"},
		{StatusID: StatusCancelled, Label: "cancelled"},
	}

	for _, st := range statuses {
		var existing StatusDetail
		err := d.First(&existing, "status_id = ?", st.StatusID).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("check status %d: %w", st.StatusID, err)
		}
		if err := d.Create(&st).Error; err != nil {
			return fmt.Errorf("seed status %d: %w", st.StatusID, err)
		}
	}
	return nil
}
