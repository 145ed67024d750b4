package catalog

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

// memStore is an in-memory Store. InTx is a pass-through since these tests
// exercise diffing decisions, not transactional behavior. Lock, reference
// check and delete calls are recorded in ops so tests can assert ordering.
type memStore struct {
	subjects     map[string]*Subject
	expertise    map[string][]Expertise
	affiliations map[string][]Affiliation
	socials      map[string][]Social
	availability map[string][]Availability

	refs *fakeRefChecker
	ops  []string
}

func newCatalogMemStore() *memStore {
	m := &memStore{
		subjects:     map[string]*Subject{},
		expertise:    map[string][]Expertise{},
		affiliations: map[string][]Affiliation{},
		socials:      map[string][]Social{},
		availability: map[string][]Availability{},
	}
	m.refs = &fakeRefChecker{active: map[string]bool{}, store: m}
	return m
}

func (m *memStore) InTx(ctx context.Context, fn func(Store, SessionRefChecker) error) error {
	return fn(m, m.refs)
}

func (m *memStore) LockTopic(_ context.Context, topicID string) error {
	m.ops = append(m.ops, "lock "+topicID)
	return nil
}

func (m *memStore) SubjectsByTutor(_ context.Context, tutorID string) ([]Subject, error) {
	var out []Subject
	for _, s := range m.subjects {
		if s.TutorID == tutorID {
			copied := *s
			copied.Topics = append([]Topic(nil), s.Topics...)
			out = append(out, copied)
		}
	}
	return out, nil
}

func (m *memStore) SubjectByName(_ context.Context, tutorID, name string) (*Subject, error) {
	for _, s := range m.subjects {
		if s.TutorID == tutorID && s.Name == name {
			copied := *s
			copied.Topics = append([]Topic(nil), s.Topics...)
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateSubject(_ context.Context, s *Subject) error {
	copied := *s
	m.subjects[s.SubjectID] = &copied
	return nil
}

func (m *memStore) DeleteSubject(_ context.Context, subjectID string) error {
	delete(m.subjects, subjectID)
	return nil
}

func (m *memStore) CreateTopic(_ context.Context, t *Topic) error {
	s := m.subjects[t.SubjectID]
	s.Topics = append(s.Topics, *t)
	return nil
}

func (m *memStore) DeleteTopic(_ context.Context, topicID string) error {
	m.ops = append(m.ops, "delete "+topicID)
	for _, s := range m.subjects {
		for i, t := range s.Topics {
			if t.TopicID == topicID {
				s.Topics = append(s.Topics[:i], s.Topics[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *memStore) ReplaceExpertise(_ context.Context, tutorID string, rows []Expertise) error {
	m.expertise[tutorID] = rows
	return nil
}

func (m *memStore) ReplaceAffiliations(_ context.Context, tutorID string, rows []Affiliation) error {
	m.affiliations[tutorID] = rows
	return nil
}

func (m *memStore) ReplaceSocials(_ context.Context, tutorID string, rows []Social) error {
	m.socials[tutorID] = rows
	return nil
}

func (m *memStore) ReplaceAvailability(_ context.Context, tutorID string, rows []Availability) error {
	m.availability[tutorID] = rows
	return nil
}

func (m *memStore) ListExpertise(_ context.Context, tutorID string) ([]Expertise, error) {
	return m.expertise[tutorID], nil
}

func (m *memStore) ListAffiliations(_ context.Context, tutorID string) ([]Affiliation, error) {
	return m.affiliations[tutorID], nil
}

func (m *memStore) ListSocials(_ context.Context, tutorID string) ([]Social, error) {
	return m.socials[tutorID], nil
}

func (m *memStore) ListAvailability(_ context.Context, tutorID string) ([]Availability, error) {
	return m.availability[tutorID], nil
}

// fakeRefChecker reports topics in active as still referenced.
type fakeRefChecker struct {
	active map[string]bool
	store  *memStore
}

func (f *fakeRefChecker) ActiveSessionExists(_ context.Context, topicID string) (bool, error) {
	f.store.ops = append(f.store.ops, "check "+topicID)
	return f.active[topicID], nil
}

func tutorCaller(id string) identity.Identity {
	return identity.Identity{UserID: id, Roles: []policy.Role{policy.RoleTutor}}
}

func newTestReconciler() (*Reconciler, *memStore, *fakeRefChecker) {
	store := newCatalogMemStore()
	return NewReconciler(store, zap.NewNop()), store, store.refs
}

func subjectNames(t *testing.T, store *memStore, tutorID string) []string {
	t.Helper()
	subjects, err := store.SubjectsByTutor(context.Background(), tutorID)
	require.NoError(t, err)
	names := make([]string, 0, len(subjects))
	for _, s := range subjects {
		names = append(names, s.Name)
	}
	return names
}

func TestSetSubjects_AddsNewNames(t *testing.T) {
	rc, store, _ := newTestReconciler()

	report, err := rc.SetSubjects(context.Background(), tutorCaller("tutor-1"), []string{"Algebra", "Physics"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Algebra", "Physics"}, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Skipped)
	assert.ElementsMatch(t, []string{"Algebra", "Physics"}, subjectNames(t, store, "tutor-1"))
}

func TestSetSubjects_RequiresTutorRole(t *testing.T) {
	rc, _, _ := newTestReconciler()

	caller := identity.Identity{UserID: "student-1", Roles: []policy.Role{policy.RoleStudent}}
	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindPermissionDenied, e.Kind)
}

func TestSetSubjects_Idempotent(t *testing.T) {
	rc, _, _ := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra", "Physics"})
	require.NoError(t, err)

	report, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra", "Physics"})
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Skipped)
}

func TestSetSubjects_NormalizesInput(t *testing.T) {
	rc, store, _ := newTestReconciler()

	report, err := rc.SetSubjects(context.Background(), tutorCaller("tutor-1"),
		[]string{" Algebra ", "Algebra", "", "Physics"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Algebra", "Physics"}, report.Added)
	assert.Len(t, subjectNames(t, store, "tutor-1"), 2)
}

func TestSetSubjects_DeletesRemovedNames(t *testing.T) {
	rc, store, _ := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra", "Physics"})
	require.NoError(t, err)

	report, err := rc.SetSubjects(context.Background(), caller, []string{"Physics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Algebra"}, report.Deleted)
	assert.ElementsMatch(t, []string{"Physics"}, subjectNames(t, store, "tutor-1"))
}

func TestSetSubjects_RetainsSubjectWithActiveTopic(t *testing.T) {
	rc, store, refs := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	require.NoError(t, err)
	topics, err := rc.SetTopics(context.Background(), caller, "Algebra", []string{"Linear equations", "Matrices"})
	require.NoError(t, err)
	require.Len(t, topics.Added, 2)

	// One topic is referenced by an active session, the other is free.
	subject, err := store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	refs.active[subject.Topics[0].TopicID] = true
	freeTopicID := subject.Topics[1].TopicID

	report, err := rc.SetSubjects(context.Background(), caller, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Equal(t, []string{"Algebra"}, report.Skipped)

	// Subject and the referenced topic survive, the free topic is gone.
	subject, err = store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	require.NotNil(t, subject)
	require.Len(t, subject.Topics, 1)
	assert.NotEqual(t, freeTopicID, subject.Topics[0].TopicID)
}

func TestSetSubjects_RetainedSubjectDeletableOnceSessionsEnd(t *testing.T) {
	rc, store, refs := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	require.NoError(t, err)
	_, err = rc.SetTopics(context.Background(), caller, "Algebra", []string{"Matrices"})
	require.NoError(t, err)

	subject, err := store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	refs.active[subject.Topics[0].TopicID] = true

	report, err := rc.SetSubjects(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Algebra"}, report.Skipped)

	// The referencing session has since left the active set.
	refs.active = map[string]bool{}

	report, err = rc.SetSubjects(context.Background(), caller, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Algebra"}, report.Deleted)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, subjectNames(t, store, "tutor-1"))
}

func TestSetTopics_UnknownSubject(t *testing.T) {
	rc, _, _ := newTestReconciler()

	_, err := rc.SetTopics(context.Background(), tutorCaller("tutor-1"), "Chemistry", []string{"Acids"})
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindNotFound, e.Kind)
}

func TestSetTopics_SubjectOwnedByOtherTutor(t *testing.T) {
	rc, _, _ := newTestReconciler()

	_, err := rc.SetSubjects(context.Background(), tutorCaller("tutor-1"), []string{"Algebra"})
	require.NoError(t, err)

	// tutor-2 cannot see tutor-1's subject, reads the same as absent.
	_, err = rc.SetTopics(context.Background(), tutorCaller("tutor-2"), "Algebra", []string{"Matrices"})
	e, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Equal(t, httpx.KindNotFound, e.Kind)
}

func TestSetTopics_SkipsActiveTopic(t *testing.T) {
	rc, store, refs := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	require.NoError(t, err)
	_, err = rc.SetTopics(context.Background(), caller, "Algebra", []string{"Matrices", "Vectors"})
	require.NoError(t, err)

	subject, err := store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	for _, topic := range subject.Topics {
		if topic.Title == "Matrices" {
			refs.active[topic.TopicID] = true
		}
	}

	report, err := rc.SetTopics(context.Background(), caller, "Algebra", []string{"Vectors"})
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Equal(t, []string{"Matrices"}, report.Skipped)
}

func TestSetTopics_LocksTopicBeforeReferenceCheck(t *testing.T) {
	rc, store, _ := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	require.NoError(t, err)
	_, err = rc.SetTopics(context.Background(), caller, "Algebra", []string{"Matrices"})
	require.NoError(t, err)

	subject, err := store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	topicID := subject.Topics[0].TopicID

	// Each deletion candidate is locked, then checked for references, then
	// deleted, all against the same transaction handle.
	store.ops = nil
	_, err = rc.SetTopics(context.Background(), caller, "Algebra", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lock " + topicID, "check " + topicID, "delete " + topicID}, store.ops)
}

func TestSetSubjects_LocksEachTopicBeforeReferenceCheck(t *testing.T) {
	rc, store, refs := newTestReconciler()
	caller := tutorCaller("tutor-1")

	_, err := rc.SetSubjects(context.Background(), caller, []string{"Algebra"})
	require.NoError(t, err)
	_, err = rc.SetTopics(context.Background(), caller, "Algebra", []string{"Matrices"})
	require.NoError(t, err)

	subject, err := store.SubjectByName(context.Background(), "tutor-1", "Algebra")
	require.NoError(t, err)
	topicID := subject.Topics[0].TopicID
	refs.active[topicID] = true

	store.ops = nil
	report, err := rc.SetSubjects(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Algebra"}, report.Skipped)

	// The lock lands before the reference check, and the referenced topic is
	// never deleted.
	assert.Equal(t, []string{"lock " + topicID, "check " + topicID}, store.ops)
}

func TestSetExpertise_ReplacesWholesale(t *testing.T) {
	rc, store, _ := newTestReconciler()
	caller := tutorCaller("tutor-1")

	require.NoError(t, rc.SetExpertise(context.Background(), caller, []string{"Calculus", "Statistics"}))
	require.NoError(t, rc.SetExpertise(context.Background(), caller, []string{"Statistics"}))

	rows, err := store.ListExpertise(context.Background(), "tutor-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Statistics", rows[0].Expertise)
}

func TestSetAvailability(t *testing.T) {
	rc, store, _ := newTestReconciler()
	caller := tutorCaller("tutor-1")

	tests := []struct {
		name     string
		input    AvailabilityInput
		wantKind httpx.Kind
		wantOK   bool
	}{
		{
			name: "valid windows",
			input: AvailabilityInput{
				Dates:     []string{"2025-01-10", "2025-01-11"},
				TimesFrom: []string{"09:00", "10:00"},
				TimesTo:   []string{"12:00", "13:00"},
			},
			wantOK: true,
		},
		{
			name: "length mismatch",
			input: AvailabilityInput{
				Dates:     []string{"2025-01-10", "2025-01-11"},
				TimesFrom: []string{"09:00"},
				TimesTo:   []string{"12:00", "13:00"},
			},
			wantKind: httpx.KindInvalidInput,
		},
		{
			name: "bad date",
			input: AvailabilityInput{
				Dates:     []string{"Jan 10"},
				TimesFrom: []string{"09:00"},
				TimesTo:   []string{"12:00"},
			},
			wantKind: httpx.KindInvalidInput,
		},
		{
			name: "bad time",
			input: AvailabilityInput{
				Dates:     []string{"2025-01-10"},
				TimesFrom: []string{"9am"},
				TimesTo:   []string{"12:00"},
			},
			wantKind: httpx.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rc.SetAvailability(context.Background(), caller, tt.input)
			if tt.wantOK {
				require.NoError(t, err)
				rows, listErr := store.ListAvailability(context.Background(), "tutor-1")
				require.NoError(t, listErr)
				assert.Len(t, rows, len(tt.input.Dates))
				return
			}
			e, ok := httpx.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, e.Kind)
		})
	}
}
