package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// TopicRef resolves a topic to its subject and the tutor owning that subject,
// plus the display names frozen onto new sessions.
type TopicRef struct {
	TopicID     string
	SubjectID   string
	TutorID     string
	TopicTitle  string
	SubjectName string
}

// ErrDuplicateSession is returned by CreateSession when the pending unique
// index rejects an identical concurrent request.
var ErrDuplicateSession = errors.New("duplicate pending session")

// Store is the storage the lifecycle manager runs against. All multi-step
// writes go through InTx; the Postgres implementation backs InTx with a
// database transaction so a failure leaves nothing half-applied.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	ResolveTopic(ctx context.Context, topicID string) (*TopicRef, error)
	HasPendingDuplicate(ctx context.Context, s *Session) (bool, error)
	CreateSession(ctx context.Context, s *Session) error
	SessionByID(ctx context.Context, id string) (*Session, error)
	SetSessionStatus(ctx context.Context, id string, st Status) error
	SetSessionTiming(ctx context.Context, id string, started, ended *string, duration *int) error
	StatusInCatalog(ctx context.Context, st Status) (bool, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]SessionView, error)
	DeleteSession(ctx context.Context, id string) error
	CountSessionsForTopic(ctx context.Context, topicID string) (int64, error)
	DeleteTopic(ctx context.Context, topicID string) error
	AppendHistory(ctx context.Context, h *SessionHistory) error
}

// allowedTransitions is the session state machine. Statuses absent as keys
// are terminal: nothing transitions out of them, and nothing ever returns
// to Pending.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

func transitionAllowed(from, to Status) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Manager owns the session-request state machine.
type Manager struct {
	store  Store
	logger *zap.Logger
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// RequestInput is the payload for creating a session request.
type RequestInput struct {
	TutorID  string `json:"tutor_id"`
	TopicID  string `json:"topic_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Modality string `json:"modality"`
	Room     string `json:"room_number"`
}

func (in *RequestInput) validate() error {
	if in.TutorID == "" || in.TopicID == "" {
		return httpx.InvalidInput("tutor_id and topic_id are required")
	}
	if in.Modality == "" {
		return httpx.InvalidInput("modality is required")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return httpx.InvalidInput("date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return httpx.InvalidInput("time must be HH:MM")
	}
	return nil
}

// RequestSession creates a session in Pending state. The duplicate check and
// the insert share one transaction; a partial unique index on pending
// (tutor, topic, student, date, time) backstops concurrent identical
// requests so at most one can commit.
func (m *Manager) RequestSession(ctx context.Context, caller identity.Identity, in RequestInput) (*Session, error) {
	if err := policy.Allow(caller.Roles, policy.RoleStudent); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	session := &Session{
		SessionID:  uuid.NewString(),
		Date:       in.Date,
		Time:       in.Time,
		TutorID:    in.TutorID,
		StudentID:  caller.UserID,
		TopicID:    in.TopicID,
		Status:     StatusPending,
		Modality:   in.Modality,
		RoomNumber: in.Room,
	}

	err := m.store.InTx(ctx, func(tx Store) error {
		ref, err := tx.ResolveTopic(ctx, in.TopicID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if ref == nil {
			return httpx.NotFound("Topic not found")
		}
		// A session must reference a topic under a subject owned by the
		// session's tutor.
		if ref.TutorID != in.TutorID {
			return httpx.InvalidInput("Topic does not belong to the requested tutor")
		}
		session.SubjectName = ref.SubjectName
		session.TopicTitle = ref.TopicTitle

		dup, err := tx.HasPendingDuplicate(ctx, session)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if dup {
			return httpx.Conflict("An identical pending request already exists")
		}

		if err := tx.CreateSession(ctx, session); err != nil {
			if errors.Is(err, ErrDuplicateSession) {
				return httpx.Conflict("An identical pending request already exists")
			}
			return httpx.StorageUnavailable(err)
		}
		return tx.AppendHistory(ctx, &SessionHistory{
			ID:         uuid.NewString(),
			SessionID:  session.SessionID,
			FromStatus: StatusPending,
			ToStatus:   StatusPending,
			ActorID:    caller.UserID,
			Snapshot:   []string{session.StudentID, session.TutorID, session.TopicID},
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Session requested",
		zap.String("session_id", session.SessionID),
		zap.String("student_id", session.StudentID),
		zap.String("tutor_id", session.TutorID))

	return session, nil
}

// UpdateSessionStatus transitions a session. Only the tutor the session is
// addressed to may act, and only along the state machine's edges.
func (m *Manager) UpdateSessionStatus(ctx context.Context, caller identity.Identity, sessionID string, newStatus Status) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}

	err := m.store.InTx(ctx, func(tx Store) error {
		session, err := tx.SessionByID(ctx, sessionID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if session == nil {
			return httpx.NotFound("Session not found")
		}
		if session.TutorID != caller.UserID {
			return httpx.PermissionDenied()
		}

		known, err := tx.StatusInCatalog(ctx, newStatus)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if !known {
			return httpx.InvalidInput("Invalid status")
		}
		if !transitionAllowed(session.Status, newStatus) {
			return httpx.Conflict("Transition not allowed")
		}

		if err := tx.SetSessionStatus(ctx, sessionID, newStatus); err != nil {
			return httpx.StorageUnavailable(err)
		}
		return tx.AppendHistory(ctx, &SessionHistory{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			FromStatus: session.Status,
			ToStatus:   newStatus,
			ActorID:    caller.UserID,
			Snapshot:   []string{session.StudentID, session.TutorID, session.TopicID},
		})
	})
	if err != nil {
		return err
	}

	m.logger.Info("Session status updated",
		zap.String("session_id", sessionID),
		zap.Int16("status", int16(newStatus)),
		zap.String("tutor_id", caller.UserID))
	return nil
}

// ListSessionsForUser returns sessions where the user is either side,
// newest first. Role-independent: tutors and students share this lookup.
func (m *Manager) ListSessionsForUser(ctx context.Context, caller identity.Identity) ([]SessionView, error) {
	views, err := m.store.ListSessionsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, httpx.StorageUnavailable(err)
	}
	return views, nil
}

// DeleteSessionRequest removes a still-pending request. Only the requesting
// student may delete, and a session that is absent, not theirs, or no longer
// pending is reported identically as not found so callers cannot probe
// other users' sessions.
//
// Deleting the last session referencing a topic removes the topic too; both
// steps share the transaction, so a concurrent RequestSession on the same
// topic either sees it before the delete or blocks the cleanup.
func (m *Manager) DeleteSessionRequest(ctx context.Context, caller identity.Identity, sessionID string) error {
	if err := policy.Allow(caller.Roles, policy.RoleStudent); err != nil {
		return err
	}

	err := m.store.InTx(ctx, func(tx Store) error {
		session, err := tx.SessionByID(ctx, sessionID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if session == nil || session.StudentID != caller.UserID || session.Status != StatusPending {
			return httpx.NotFound("Session not found")
		}

		if err := tx.DeleteSession(ctx, sessionID); err != nil {
			return httpx.StorageUnavailable(err)
		}

		remaining, err := tx.CountSessionsForTopic(ctx, session.TopicID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if remaining == 0 {
			if err := tx.DeleteTopic(ctx, session.TopicID); err != nil {
				return httpx.StorageUnavailable(err)
			}
			m.logger.Info("Orphaned topic removed", zap.String("topic_id", session.TopicID))
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Session request deleted",
		zap.String("session_id", sessionID),
		zap.String("student_id", caller.UserID))
	return nil
}

// StartSession stamps the actual start time on an accepted session.
func (m *Manager) StartSession(ctx context.Context, caller identity.Identity, sessionID, timeStarted string) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", timeStarted); err != nil {
		return httpx.InvalidInput("time_started must be HH:MM")
	}

	return m.store.InTx(ctx, func(tx Store) error {
		session, err := tx.SessionByID(ctx, sessionID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if session == nil {
			return httpx.NotFound("Session not found")
		}
		if session.TutorID != caller.UserID {
			return httpx.PermissionDenied()
		}
		if session.Status != StatusAccepted {
			return httpx.Conflict("Session is not accepted")
		}
		if err := tx.SetSessionTiming(ctx, sessionID, &timeStarted, nil, nil); err != nil {
			return httpx.StorageUnavailable(err)
		}
		return nil
	})
}

// EndSession stamps the end time, computes the duration and completes the
// session in one transaction.
func (m *Manager) EndSession(ctx context.Context, caller identity.Identity, sessionID, timeEnded string) error {
	if err := policy.Allow(caller.Roles, policy.RoleTutor); err != nil {
		return err
	}
	ended, err := time.Parse("15:04", timeEnded)
	if err != nil {
		return httpx.InvalidInput("time_ended must be HH:MM")
	}

	return m.store.InTx(ctx, func(tx Store) error {
		session, err := tx.SessionByID(ctx, sessionID)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		if session == nil {
			return httpx.NotFound("Session not found")
		}
		if session.TutorID != caller.UserID {
			return httpx.PermissionDenied()
		}
		if session.Status != StatusAccepted || session.TimeStarted == nil {
			return httpx.Conflict("Session has not been started")
		}

		started, err := time.Parse("15:04", *session.TimeStarted)
		if err != nil {
			return httpx.StorageUnavailable(err)
		}
		minutes := int(ended.Sub(started).Minutes())
		if minutes < 0 {
			return httpx.InvalidInput("time_ended is before time_started")
		}

		if err := tx.SetSessionTiming(ctx, sessionID, nil, &timeEnded, &minutes); err != nil {
			return httpx.StorageUnavailable(err)
		}
		if err := tx.SetSessionStatus(ctx, sessionID, StatusCompleted); err != nil {
			return httpx.StorageUnavailable(err)
		}
		return tx.AppendHistory(ctx, &SessionHistory{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			FromStatus: session.Status,
			ToStatus:   StatusCompleted,
			ActorID:    caller.UserID,
			Snapshot:   []string{session.StudentID, session.TutorID, session.TopicID},
		})
	})
}
