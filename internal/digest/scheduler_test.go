package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/arnold/partnerhub-api/internal/store/storetest"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	sent map[uuid.UUID]*models.DigestSnapshot
	fail map[uuid.UUID]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: map[uuid.UUID]*models.DigestSnapshot{}, fail: map[uuid.UUID]bool{}}
}

func (m *fakeMailer) SendDigestEmail(_ context.Context, user models.UserRef, snapshot *models.DigestSnapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[user.ID] {
		return false
	}
	if _, dup := m.sent[user.ID]; dup {
		panic("digest sent twice to " + user.Email)
	}
	m.sent[user.ID] = snapshot
	return true
}

// flakyStore fails snapshot queries for one user.
type flakyStore struct {
	*store.Store
	broken uuid.UUID
}

func (f *flakyStore) OverdueTasks(ctx context.Context, userID uuid.UUID, before time.Time, limit int) ([]models.Task, error) {
	if userID == f.broken {
		return nil, errors.New("statement timeout")
	}
	return f.Store.OverdueTasks(ctx, userID, before, limit)
}

func newTestScheduler(t *testing.T, st Store, mailer Mailer, batch int) (*Scheduler, *metrics.Metrics) {
	t.Helper()
	log, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	s, err := NewScheduler(st, mailer, Config{BatchSize: batch}, m, log)
	require.NoError(t, err)
	s.now = func() time.Time { return runAt }
	return s, m
}

func createUser(t *testing.T, s *store.Store, email string, prefs models.UserPreferences) *models.UserProfile {
	t.Helper()
	u := &models.UserProfile{Email: email, Name: email, IsActive: true, Preferences: prefs}
	require.NoError(t, s.DB().Create(u).Error)
	return u
}

func createTask(t *testing.T, s *store.Store, assignee uuid.UUID, title, status string, due time.Time) {
	t.Helper()
	task := &models.Task{Title: title, AssigneeID: &assignee, Status: status, Priority: models.PriorityMedium, DueDate: &due}
	require.NoError(t, s.DB().Create(task).Error)
}

func TestRunSkipsEmptyDigests(t *testing.T) {
	st := storetest.New(t)
	mailer := newFakeMailer()
	idle := createUser(t, st, "idle@partnerhub.io", models.UserPreferences{})

	s, m := newTestScheduler(t, st, mailer, 50)
	var stats RunStats
	require.NotPanics(t, func() { stats = s.Run(context.Background()) })

	assert.Equal(t, RunStats{Eligible: 1, Skipped: 1}, stats)
	assert.NotContains(t, mailer.sent, idle.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DigestEmails.WithLabelValues("skipped")))
}

func TestRunSendsOnePerEligibleUser(t *testing.T) {
	st := storetest.New(t)
	mailer := newFakeMailer()
	off := false

	busy := createUser(t, st, "busy@partnerhub.io", models.UserPreferences{})
	createTask(t, st, busy.ID, "today", models.TaskTodo, runAt.Add(4*time.Hour))
	createTask(t, st, busy.ID, "late", models.TaskTodo, runAt.Add(-50*time.Hour))
	createTask(t, st, busy.ID, "done", models.TaskCompleted, runAt.Add(-100*time.Hour))

	optedOut := createUser(t, st, "quiet@partnerhub.io", models.UserPreferences{DigestEnabled: &off})
	createTask(t, st, optedOut.ID, "today", models.TaskTodo, runAt.Add(time.Hour))

	inactive := createUser(t, st, "gone@partnerhub.io", models.UserPreferences{})
	require.NoError(t, st.DB().Model(inactive).Update("is_active", false).Error)
	createTask(t, st, inactive.ID, "today", models.TaskTodo, runAt.Add(time.Hour))

	reader := createUser(t, st, "reader@partnerhub.io", models.UserPreferences{})
	require.NoError(t, st.CreateNotification(context.Background(), &models.InAppNotification{UserID: reader.ID, Type: models.KindSystem, Title: "hi"}))

	s, _ := newTestScheduler(t, st, mailer, 50)
	stats := s.Run(context.Background())

	assert.Equal(t, RunStats{Eligible: 2, Sent: 2}, stats)
	require.Contains(t, mailer.sent, busy.ID)
	assert.NotContains(t, mailer.sent, optedOut.ID)
	assert.NotContains(t, mailer.sent, inactive.ID)

	snap := mailer.sent[busy.ID]
	require.Len(t, snap.TodayTasks, 1)
	require.Len(t, snap.OverdueTasks, 1)
	assert.Equal(t, 3, snap.OverdueTasks[0].DaysOverdue)
	assert.Equal(t, models.DigestStats{TotalTasks: 3, CompletedTasks: 1, CompletionRate: 33}, snap.Stats)

	require.Contains(t, mailer.sent, reader.ID)
	assert.Len(t, mailer.sent[reader.ID].UnreadNotifications, 1)
}

func TestRunIsolatesPerUserFailures(t *testing.T) {
	st := storetest.New(t)
	mailer := newFakeMailer()

	var users []*models.UserProfile
	for _, email := range []string{"a@p.io", "b@p.io", "c@p.io", "d@p.io", "e@p.io"} {
		u := createUser(t, st, email, models.UserPreferences{})
		createTask(t, st, u.ID, "today", models.TaskTodo, runAt.Add(time.Hour))
		users = append(users, u)
	}
	mailer.fail[users[1].ID] = true

	s, m := newTestScheduler(t, &flakyStore{Store: st, broken: users[3].ID}, mailer, 2)
	stats := s.Run(context.Background())

	assert.Equal(t, RunStats{Eligible: 5, Sent: 3, Failed: 2}, stats)
	assert.Len(t, mailer.sent, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DigestEmails.WithLabelValues("failed")))
}

func TestRunRefusesOverlap(t *testing.T) {
	st := storetest.New(t)
	s, _ := newTestScheduler(t, st, newFakeMailer(), 50)

	s.running.Store(true)
	assert.Equal(t, RunStats{}, s.Run(context.Background()))
	s.running.Store(false)
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewScheduler(storetest.New(t), newFakeMailer(), Config{Spec: "every morning"}, metrics.New(prometheus.NewRegistry()), log)
	assert.Error(t, err)
}

func TestSnapshotHelpers(t *testing.T) {
	assert.Equal(t, 0, completionRate(0, 0))
	assert.Equal(t, 67, completionRate(3, 2))
	assert.Equal(t, 100, completionRate(4, 4))

	due := time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, daysOverdue(due, runAt))
	assert.Equal(t, 2, daysOverdue(due.Add(-24*time.Hour), runAt))
	assert.Equal(t, 1, daysOverdue(runAt, runAt))

	loc := time.FixedZone("UTC+5", 5*3600)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), startOfDay(runAt.In(loc)))
}

func TestBuildSnapshotUsesLocalDayInNonUTCZone(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)

	user := &models.UserProfile{Email: "kenji@partner.io", IsActive: true}
	require.NoError(t, st.DB().Create(user).Error)

	// 05:00 on Oct 17 in Tokyo, still Oct 16 in UTC.
	due := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	task := &models.Task{Title: "Renew contract", AssigneeID: &user.ID, Status: models.TaskTodo, DueDate: &due}
	require.NoError(t, st.DB().Create(task).Error)

	now := time.Date(2026, 10, 17, 9, 0, 0, 0, tokyo)
	snapshot, err := BuildSnapshot(ctx, st, user.ID, now)
	require.NoError(t, err)
	require.Len(t, snapshot.TodayTasks, 1)
	assert.Equal(t, task.ID, snapshot.TodayTasks[0].ID)
	assert.Empty(t, snapshot.OverdueTasks)
}
