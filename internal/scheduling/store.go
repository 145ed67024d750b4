package scheduling

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tutorly/tutorly-backend/internal/catalog"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SessionRefs builds an active-session reference checker on the given
// handle. The catalog store calls this with its transaction handle so the
// reconciler's checks run inside the same transaction as its deletes.
func SessionRefs(db *gorm.DB) catalog.SessionRefChecker {
	return NewGormStore(db)
}

// InTx runs fn against a store bound to a single database transaction.
func (s *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) ResolveTopic(ctx context.Context, topicID string) (*TopicRef, error) {
	var ref TopicRef
	err := s.db.WithContext(ctx).
		Table("catalog.topics").
		Select(`catalog.topics.topic_id, catalog.topics.subject_id, catalog.topics.topic_title,
			catalog.subjects.tutor_id, catalog.subjects.subject_name`).
		Joins("JOIN catalog.subjects ON catalog.subjects.subject_id = catalog.topics.subject_id").
		Where("catalog.topics.topic_id = ?", topicID).
		Clauses(clause.Locking{Strength: "SHARE", Table: clause.Table{Name: "topics"}}).
		Take(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *GormStore) HasPendingDuplicate(ctx context.Context, sess *Session) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("tutor_id = ? AND topic_id = ? AND student_id = ? AND date = ? AND time = ? AND status = ?",
			sess.TutorID, sess.TopicID, sess.StudentID, sess.Date, sess.Time, StatusPending).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) CreateSession(ctx context.Context, sess *Session) error {
	err := s.db.WithContext(ctx).Create(sess).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSession
	}
	return err
}

func (s *GormStore) SessionByID(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).First(&sess, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *GormStore) SetSessionStatus(ctx context.Context, id string, st Status) error {
	return s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", id).
		Update("status", st).Error
}

func (s *GormStore) SetSessionTiming(ctx context.Context, id string, started, ended *string, duration *int) error {
	updates := map[string]interface{}{}
	if started != nil {
		updates["time_started"] = *started
	}
	if ended != nil {
		updates["time_ended"] = *ended
	}
	if duration != nil {
		updates["duration"] = *duration
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", id).
		Updates(updates).Error
}

func (s *GormStore) StatusInCatalog(ctx context.Context, st Status) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&StatusDetail{}).
		Where("status_id = ?", st).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ListSessionsForUser(ctx context.Context, userID string) ([]SessionView, error) {
	var views []SessionView
	err := s.db.WithContext(ctx).
		Table("scheduling.sessions").
		Select(`scheduling.sessions.session_id, scheduling.sessions.date, scheduling.sessions.time,
			scheduling.sessions.status, scheduling.sessions.modality,
			scheduling.sessions.tutor_id, scheduling.sessions.student_id,
			tutors.name AS tutor_name, students.name AS student_name,
			COALESCE(catalog.subjects.subject_name, scheduling.sessions.subject_name) AS subject_name,
			COALESCE(catalog.topics.topic_title, scheduling.sessions.topic_title) AS topic_title`).
		Joins("JOIN accounts.users AS tutors ON tutors.user_id = scheduling.sessions.tutor_id").
		Joins("JOIN accounts.users AS students ON students.user_id = scheduling.sessions.student_id").
		Joins("LEFT JOIN catalog.topics ON catalog.topics.topic_id = scheduling.sessions.topic_id").
		Joins("LEFT JOIN catalog.subjects ON catalog.subjects.subject_id = catalog.topics.subject_id").
		Where("scheduling.sessions.tutor_id = ? OR scheduling.sessions.student_id = ?", userID, userID).
		Order("scheduling.sessions.created_at DESC").
		Scan(&views).Error
	return views, err
}

func (s *GormStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Session{}, "session_id = ?", id).Error
}

func (s *GormStore) CountSessionsForTopic(ctx context.Context, topicID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("topic_id = ?", topicID).
		Count(&count).Error
	return count, err
}

func (s *GormStore) DeleteTopic(ctx context.Context, topicID string) error {
	return s.db.WithContext(ctx).Delete(&catalog.Topic{}, "topic_id = ?", topicID).Error
}

func (s *GormStore) AppendHistory(ctx context.Context, h *SessionHistory) error {
	return s.db.WithContext(ctx).Create(h).Error
}

// ActiveSessionExists reports whether any session in the active status set
// still references the topic. The catalog reconciler consults this before
// deleting topics and subjects.
func (s *GormStore) ActiveSessionExists(ctx context.Context, topicID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("topic_id = ? AND status IN ?", topicID, ActiveStatuses).
		Count(&count).Error
	return count > 0, err
}
