package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefCheckerFactory builds a SessionRefChecker bound to the given database
// handle. InTx calls it with the transaction handle so reference checks and
// deletes share one snapshot.
type RefCheckerFactory func(db *gorm.DB) SessionRefChecker

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db   *gorm.DB
	refs RefCheckerFactory
}

func NewGormStore(db *gorm.DB, refs RefCheckerFactory) *GormStore {
	return &GormStore{db: db, refs: refs}
}

func (s *GormStore) InTx(ctx context.Context, fn func(Store, SessionRefChecker) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, refs: s.refs}, s.refs(tx))
	})
}

func (s *GormStore) SubjectsByTutor(ctx context.Context, tutorID string) ([]Subject, error) {
	var subjects []Subject
	err := s.db.WithContext(ctx).
		Preload("Topics").
		Where("tutor_id = ?", tutorID).
		Order("subject_name ASC").
		Find(&subjects).Error
	return subjects, err
}

func (s *GormStore) SubjectByName(ctx context.Context, tutorID, name string) (*Subject, error) {
	var subject Subject
	err := s.db.WithContext(ctx).
		Preload("Topics").
		Where("tutor_id = ? AND subject_name = ?", tutorID, name).
		First(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *GormStore) CreateSubject(ctx context.Context, subject *Subject) error {
	return s.db.WithContext(ctx).Create(subject).Error
}

func (s *GormStore) DeleteSubject(ctx context.Context, subjectID string) error {
	return s.db.WithContext(ctx).Delete(&Subject{}, "subject_id = ?", subjectID).Error
}

func (s *GormStore) CreateTopic(ctx context.Context, topic *Topic) error {
	return s.db.WithContext(ctx).Create(topic).Error
}

// LockTopic takes FOR UPDATE on the topic row for the rest of the
// transaction. A concurrent session request holding its shared lock on the
// same row makes this wait until that request commits, so the following
// reference check sees the committed session. An already-deleted topic is
// not an error.
func (s *GormStore) LockTopic(ctx context.Context, topicID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&Topic{}, "topic_id = ?", topicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *GormStore) DeleteTopic(ctx context.Context, topicID string) error {
	return s.db.WithContext(ctx).Delete(&Topic{}, "topic_id = ?", topicID).Error
}

// replaceAll deletes every row for the tutor and inserts the desired rows in
// one transaction, so a failure mid-way leaves the previous collection
// intact.
func replaceAll[T any](ctx context.Context, db *gorm.DB, tutorID string, model T, rows []T) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tutor_id = ?", tutorID).Delete(&model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *GormStore) ReplaceExpertise(ctx context.Context, tutorID string, rows []Expertise) error {
	return replaceAll(ctx, s.db, tutorID, Expertise{}, rows)
}

func (s *GormStore) ReplaceAffiliations(ctx context.Context, tutorID string, rows []Affiliation) error {
	return replaceAll(ctx, s.db, tutorID, Affiliation{}, rows)
}

func (s *GormStore) ReplaceSocials(ctx context.Context, tutorID string, rows []Social) error {
	return replaceAll(ctx, s.db, tutorID, Social{}, rows)
}

func (s *GormStore) ReplaceAvailability(ctx context.Context, tutorID string, rows []Availability) error {
	return replaceAll(ctx, s.db, tutorID, Availability{}, rows)
}

func (s *GormStore) ListExpertise(ctx context.Context, tutorID string) ([]Expertise, error) {
	var rows []Expertise
	err := s.db.WithContext(ctx).Where("tutor_id = ?", tutorID).Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListAffiliations(ctx context.Context, tutorID string) ([]Affiliation, error) {
	var rows []Affiliation
	err := s.db.WithContext(ctx).Where("tutor_id = ?", tutorID).Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListSocials(ctx context.Context, tutorID string) ([]Social, error) {
	var rows []Social
	err := s.db.WithContext(ctx).Where("tutor_id = ?", tutorID).Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListAvailability(ctx context.Context, tutorID string) ([]Availability, error) {
	var rows []Availability
	err := s.db.WithContext(ctx).
		Where("tutor_id = ?", tutorID).
		Order("availability ASC, available_time_from ASC").
		Find(&rows).Error
	return rows, err
}
