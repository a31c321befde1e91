package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/alert"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}()

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&domain.OutboxEvent{},
		&domain.FailedEvent{},
		&domain.UserActivity{},
		&domain.UserPoints{},
	))
	return db
}

type sentAlert struct {
	Level alert.Level
	Code  string
}

// recordingNotifier captures alerts so tests can assert on fan-out behavior.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []sentAlert
}

func (n *recordingNotifier) Send(_ context.Context, level alert.Level, code, _, _ string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, sentAlert{Level: level, Code: code})
}

func (n *recordingNotifier) sent() []sentAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentAlert(nil), n.sends...)
}

func (n *recordingNotifier) codes() []string {
	codes := make([]string, 0)
	for _, s := range n.sent() {
		codes = append(codes, s.Code)
	}
	return codes
}

type mockBadges struct {
	awarded []string
	err     error
	calls   int
}

func (m *mockBadges) EvaluateAndAward(context.Context, int64) ([]string, error) {
	m.calls++
	return m.awarded, m.err
}

type mockRanking struct {
	err   error
	calls int
}

func (m *mockRanking) SyncUser(context.Context, int64) error {
	m.calls++
	return m.err
}

// failingFailedEvents rejects every quarantine insert, to exercise the
// atomicity of the terminal FAILED transition.
type failingFailedEvents struct {
	err error
}

func (f *failingFailedEvents) Quarantine(context.Context, *gorm.DB, *domain.OutboxEvent, string) error {
	return f.err
}
func (f *failingFailedEvents) RetryBatch(context.Context) (int, int, error) { return 0, 0, nil }
func (f *failingFailedEvents) RecoverStuck(context.Context) (int64, error)  { return 0, nil }
func (f *failingFailedEvents) LogStatistics(context.Context)                {}

// failingProcessor always rejects, to drive events through the retry path.
type failingProcessor struct {
	err   error
	calls int
}

func (p *failingProcessor) Process(context.Context, int64, domain.ActivityKind, domain.Operation, int64) error {
	p.calls++
	return p.err
}

func testTime() time.Time {
	return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
}
