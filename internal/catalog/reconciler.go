package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// SessionRefChecker answers whether a topic is still referenced by a session
// in the active status set. Implemented by the scheduling store, so the
// catalog package never reaches into session tables directly. InTx hands the
// reconciler a checker bound to the same transaction as the store it runs
// against; checking on a separate connection would let a racing session
// insert slip between the check and the delete.
type SessionRefChecker interface {
	ActiveSessionExists(ctx context.Context, topicID string) (bool, error)
}

// Store is the storage the reconciler runs against.
type Store interface {
	InTx(ctx context.Context, fn func(Store, SessionRefChecker) error) error

	SubjectsByTutor(ctx context.Context, tutorID string) ([]Subject, error)
	SubjectByName(ctx context.Context, tutorID, name string) (*Subject, error)
	CreateSubject(ctx context.Context, s *Subject) error
	DeleteSubject(ctx context.Context, subjectID string) error
	CreateTopic(ctx context.Context, t *Topic) error
	// LockTopic takes a row lock on the topic for the rest of the
	// transaction, serializing the reference check and delete against
	// concurrent session creation. Locking a topic that no longer exists
	// is a no-op.
	LockTopic(ctx context.Context, topicID string) error
	DeleteTopic(ctx context.Context, topicID string) error

	ReplaceExpertise(ctx context.Context, tutorID string, rows []Expertise) error
	ReplaceAffiliations(ctx context.Context, tutorID string, rows []Affiliation) error
	ReplaceSocials(ctx context.Context, tutorID string, rows []Social) error
	ReplaceAvailability(ctx context.Context, tutorID string, rows []Availability) error

	ListExpertise(ctx context.Context, tutorID string) ([]Expertise, error)
	ListAffiliations(ctx context.Context, tutorID string) ([]Affiliation, error)
	ListSocials(ctx context.Context, tutorID string) ([]Social, error)
	ListAvailability(ctx context.Context, tutorID string) ([]Availability, error)
}

// ReconcileReport is the structured result of a replace-all call. Skipped
// identifies items retained because an active session still references them;
// a non-empty Skipped is a partial success, not a failure.
type ReconcileReport struct {
	Added   []string `json:"added"`
	Deleted []string `json:"deleted"`
	Skipped []string `json:"skipped"`
}

func newReport() *ReconcileReport {
	return &ReconcileReport{Added: []string{}, Deleted: []string{}, Skipped: []string{}}
}

// Reconciler owns tutor catalog state: desired collections come in whole,
// get diffed against current state, and deletions are held back wherever an
// active session still depends on them.
type Reconciler struct {
	store  Store
	logger *zap.Logger
}

func NewReconciler(store Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// normalize trims, drops empties, and dedupes while keeping order.
func normalize(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// SetSubjects reconciles the tutor's subject list against desired. New names
// are inserted; removed subjects cascade through their topics, but any topic
// an active session references keeps both itself and its subject, reported
// in Skipped. Idempotent once nothing blocks removal.
func (rc *Reconciler) SetSubjects(ctx context.Context, caller identity.Identity, desired []string) (*ReconcileReport, error) {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return nil, err
	}
	desired = normalize(desired)

	report := newReport()
	err := rc.store.InTx(ctx, func(tx Store, refs SessionRefChecker) error {
		existing, err := tx.SubjectsByTutor(ctx, caller.UserID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}

		current := make(map[string]Subject, len(existing))
		for _, s := range existing {
			current[s.Name] = s
		}
		want := make(map[string]struct{}, len(desired))
		for _, name := range desired {
			want[name] = struct{}{}
		}

		for _, name := range desired {
			if _, ok := current[name]; ok {
				continue
			}
			subject := &Subject{SubjectID: uuid.NewString(), Name: name, TutorID: caller.UserID}
			if err := tx.CreateSubject(ctx, subject); err != nil {
				return httpx.StorageUnavailable(err)
			}
			report.Added = append(report.Added, name)
		}

		for _, s := range existing {
			if _, keep := want[s.Name]; keep {
				continue
			}
			removed, err := rc.removeSubject(ctx, tx, refs, s)
			if err != nil {
				return err
			}
			if removed {
				report.Deleted = append(report.Deleted, s.Name)
			} else {
				report.Skipped = append(report.Skipped, s.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(report.Skipped) > 0 {
		rc.logger.Info("Subjects retained by active sessions",
			zap.String("tutor_id", caller.UserID),
			zap.Strings("skipped", report.Skipped))
	}
	return report, nil
}

// removeSubject deletes a subject's unreferenced topics and then the subject
// itself, unless any topic is still referenced, in which case everything
// under the subject that was deletable is deleted but the subject and the
// referenced topics stay. Each topic row is locked before its reference
// check so a session request racing the delete serializes behind it.
func (rc *Reconciler) removeSubject(ctx context.Context, tx Store, refs SessionRefChecker, s Subject) (bool, error) {
	retained := false
	for _, t := range s.Topics {
		if err := tx.LockTopic(ctx, t.TopicID); err != nil {
			return false, httpx.StorageUnavailable(err)
		}
		active, err := refs.ActiveSessionExists(ctx, t.TopicID)
		if err != nil {
			return false, httpx.StorageUnavailable(err)
		}
		if active {
			retained = true
			continue
		}
		if err := tx.DeleteTopic(ctx, t.TopicID); err != nil {
			return false, httpx.StorageUnavailable(err)
		}
	}
	if retained {
		return false, nil
	}
	if err := tx.DeleteSubject(ctx, s.SubjectID); err != nil {
		return false, httpx.StorageUnavailable(err)
	}
	return true, nil
}

// SetTopics reconciles one subject's topic titles. The subject must belong
// to the caller; a subject that is absent or owned by someone else reads the
// same from outside, so both come back as not found.
func (rc *Reconciler) SetTopics(ctx context.Context, caller identity.Identity, subjectName string, desired []string) (*ReconcileReport, error) {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return nil, err
	}
	subjectName = strings.TrimSpace(subjectName)
	if subjectName == "" {
		return nil, httpx.InvalidInput("subject_name is required")
	}
	desired = normalize(desired)

	report := newReport()
	err := rc.store.InTx(ctx, func(tx Store, refs SessionRefChecker) error {
		subject, err := tx.SubjectByName(ctx, caller.UserID, subjectName)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if subject == nil {
			return httpx.NotFound("Subject not found")
		}

		current := make(map[string]Topic, len(subject.Topics))
		for _, t := range subject.Topics {
			current[t.Title] = t
		}
		want := make(map[string]struct{}, len(desired))
		for _, title := range desired {
			want[title] = struct{}{}
		}

		for _, title := range desired {
			if _, ok := current[title]; ok {
				continue
			}
			topic := &Topic{TopicID: uuid.NewString(), SubjectID: subject.SubjectID, Title: title}
			if err := tx.CreateTopic(ctx, topic); err != nil {
				return httpx.StorageUnavailable(err)
			}
			report.Added = append(report.Added, title)
		}

		for _, t := range subject.Topics {
			if _, keep := want[t.Title]; keep {
				continue
			}
			if err := tx.LockTopic(ctx, t.TopicID); err != nil {
				return httpx.StorageUnavailable(err)
			}
			active, err := refs.ActiveSessionExists(ctx, t.TopicID)
			if err != nil {
				return httpx.StorageUnavailable(err)
			}
			if active {
				report.Skipped = append(report.Skipped, t.Title)
				continue
			}
			if err := tx.DeleteTopic(ctx, t.TopicID); err != nil {
				return httpx.StorageUnavailable(err)
			}
			report.Deleted = append(report.Deleted, t.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(report.Skipped) > 0 {
		rc.logger.Info("Topics retained by active sessions",
			zap.String("tutor_id", caller.UserID),
			zap.String("subject", subjectName),
			zap.Strings("skipped", report.Skipped))
	}
	return report, nil
}

// SetExpertise replaces the tutor's expertise list wholesale. No dependents,
// so no reference checks.
func (rc *Reconciler) SetExpertise(ctx context.Context, caller identity.Identity, desired []string) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	rows := make([]Expertise, 0, len(desired))
	for _, e := range normalize(desired) {
		rows = append(rows, Expertise{ID: uuid.NewString(), TutorID: caller.UserID, Expertise: e})
	}
	if err := rc.store.ReplaceExpertise(ctx, caller.UserID, rows); err != nil {
		return httpx.StorageUnavailable(err)
	}
	return nil
}

// SetAffiliations replaces the tutor's affiliations wholesale.
func (rc *Reconciler) SetAffiliations(ctx context.Context, caller identity.Identity, desired []string) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	rows := make([]Affiliation, 0, len(desired))
	for _, a := range normalize(desired) {
		rows = append(rows, Affiliation{ID: uuid.NewString(), TutorID: caller.UserID, Affiliation: a})
	}
	if err := rc.store.ReplaceAffiliations(ctx, caller.UserID, rows); err != nil {
		return httpx.StorageUnavailable(err)
	}
	return nil
}

// SetSocials replaces the tutor's social links wholesale.
func (rc *Reconciler) SetSocials(ctx context.Context, caller identity.Identity, desired []string) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	rows := make([]Social, 0, len(desired))
	for _, s := range normalize(desired) {
		rows = append(rows, Social{ID: uuid.NewString(), TutorID: caller.UserID, Social: s})
	}
	if err := rc.store.ReplaceSocials(ctx, caller.UserID, rows); err != nil {
		return httpx.StorageUnavailable(err)
	}
	return nil
}

// AvailabilityInput is the parallel-list form the frontend submits.
type AvailabilityInput struct {
	Dates     []string `json:"availability"`
	TimesFrom []string `json:"available_time_from"`
	TimesTo   []string `json:"available_time_to"`
}

// SetAvailability replaces the tutor's availability windows wholesale. The
// three lists must line up element for element.
func (rc *Reconciler) SetAvailability(ctx context.Context, caller identity.Identity, in AvailabilityInput) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	if len(in.Dates) != len(in.TimesFrom) || len(in.Dates) != len(in.TimesTo) {
		return httpx.InvalidInput("availability lists must have equal lengths")
	}

	rows := make([]Availability, 0, len(in.Dates))
	for i := range in.Dates {
		if _, err := time.Parse("2006-01-02", in.Dates[i]); err != nil {
			return httpx.InvalidInput("availability dates must be YYYY-MM-DD")
		}
		if _, err := time.Parse("15:04", in.TimesFrom[i]); err != nil {
			return httpx.InvalidInput("availability times must be HH:MM")
		}
		if _, err := time.Parse("15:04", in.TimesTo[i]); err != nil {
			return httpx.InvalidInput("availability times must be HH:MM")
		}
		rows = append(rows, Availability{
			ID:       uuid.NewString(),
			TutorID:  caller.UserID,
			Date:     in.Dates[i],
			TimeFrom: in.TimesFrom[i],
			TimeTo:   in.TimesTo[i],
		})
	}

	if err := rc.store.ReplaceAvailability(ctx, caller.UserID, rows); err != nil {
		return httpx.StorageUnavailable(err)
	}
	return nil
}

// GetSubjects returns a tutor's subjects with topics preloaded.
func (rc *Reconciler) GetSubjects(ctx context.Context, tutorID string) ([]Subject, error) {
	subjects, err := rc.store.SubjectsByTutor(ctx, tutorID)
	if err != nil {
		return nil, httpx.StorageUnavailable(err)
	}
	return subjects, nil
}
