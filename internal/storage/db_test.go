package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"finance-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// DBTestSuite provides a test suite for user and ledger operations
type DBTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) createUser(email string) {
	_, err := suite.db.CreateUser(suite.ctx, email, "hash", "Test")
	require.NoError(suite.T(), err, "failed to create user %s", email)
}

func tx(id string, value int64, typ models.TransactionType) models.Transaction {
	return models.Transaction{ID: id, Value: decimal.NewFromInt(value), Description: id, Date: "2024-01-01", Type: typ}
}

func (suite *DBTestSuite) TestCreateUser() {
	user, err := suite.db.CreateUser(suite.ctx, "a@x.com", "hash", "A")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "a@x.com", user.Email)
	assert.Equal(suite.T(), "A", user.Name)
	assert.Equal(suite.T(), "hash", user.PasswordHash)

	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), l.Balance.IsZero())
	assert.NotNil(suite.T(), l.Transactions)
	assert.Empty(suite.T(), l.Transactions)
	assert.Equal(suite.T(), int64(0), l.Version)
}

func (suite *DBTestSuite) TestCreateUserDuplicate() {
	suite.createUser("a@x.com")

	_, err := suite.db.CreateUser(suite.ctx, "a@x.com", "other", "B")
	assert.ErrorIs(suite.T(), err, ErrDuplicate)

	user, err := suite.db.GetUser(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Test", user.Name, "first record must be untouched")

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *DBTestSuite) TestGetUserNotFound() {
	_, err := suite.db.GetUser(suite.ctx, "nobody@x.com")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	_, err = suite.db.GetLedger(suite.ctx, "nobody@x.com")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestUpdateLedgerPersistsOrderAndBalance() {
	suite.createUser("a@x.com")

	written, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
		l.Transactions = append(l.Transactions,
			tx("t1", 100, models.Credit),
			tx("t2", 30, models.Debit),
			tx("t3", 5, models.Credit),
		)
		l.Balance = decimal.NewFromInt(75)
		return nil
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), written.Version)

	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), decimal.NewFromInt(75).Equal(l.Balance))
	assert.Equal(suite.T(), int64(1), l.Version)
	if assert.Len(suite.T(), l.Transactions, 3) {
		assert.Equal(suite.T(), "t1", l.Transactions[0].ID)
		assert.Equal(suite.T(), "t2", l.Transactions[1].ID)
		assert.Equal(suite.T(), "t3", l.Transactions[2].ID)
		assert.Equal(suite.T(), models.Debit, l.Transactions[1].Type)
		assert.True(suite.T(), decimal.NewFromInt(30).Equal(l.Transactions[1].Value))
	}
}

func (suite *DBTestSuite) TestUpdateLedgerKeepsDecimals() {
	suite.createUser("a@x.com")

	value := decimal.RequireFromString("0.1")
	_, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
		for i := range 3 {
			l.Transactions = append(l.Transactions, models.Transaction{
				ID: fmt.Sprint(i), Value: value, Description: "d", Date: "d", Type: models.Credit,
			})
			l.Balance = l.Balance.Add(value)
		}
		return nil
	})
	require.NoError(suite.T(), err)

	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "0.3", l.Balance.String())
}

func (suite *DBTestSuite) TestUpdateLedgerFnErrorRollsBack() {
	suite.createUser("a@x.com")
	boom := errors.New("boom")

	_, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
		l.Transactions = append(l.Transactions, tx("t1", 10, models.Credit))
		l.Balance = decimal.NewFromInt(10)
		return boom
	})
	assert.ErrorIs(suite.T(), err, boom)

	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), l.Transactions)
	assert.True(suite.T(), l.Balance.IsZero())
	assert.Equal(suite.T(), int64(0), l.Version)
}

func (suite *DBTestSuite) TestUpdateLedgerUnknownUser() {
	called := false
	_, err := suite.db.UpdateLedger(suite.ctx, "nobody@x.com", func(*models.Ledger) error {
		called = true
		return nil
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.False(suite.T(), called)
}

func (suite *DBTestSuite) TestUpdateLedgerIsolatesUsers() {
	suite.createUser("a@x.com")
	suite.createUser("b@x.com")

	_, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
		l.Transactions = append(l.Transactions, tx("same-id", 10, models.Credit))
		l.Balance = decimal.NewFromInt(10)
		return nil
	})
	require.NoError(suite.T(), err)
	_, err = suite.db.UpdateLedger(suite.ctx, "b@x.com", func(l *models.Ledger) error {
		l.Transactions = append(l.Transactions, tx("same-id", 4, models.Debit))
		l.Balance = decimal.NewFromInt(-4)
		return nil
	})
	require.NoError(suite.T(), err)

	a, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	b, err := suite.db.GetLedger(suite.ctx, "b@x.com")
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), a.Transactions, 1)
	assert.Len(suite.T(), b.Transactions, 1)
	assert.Equal(suite.T(), "10", a.Balance.String())
	assert.Equal(suite.T(), "-4", b.Balance.String())
}

func (suite *DBTestSuite) TestUpdateLedgerRejectsStaleVersion() {
	suite.createUser("a@x.com")

	// Another writer commits a new version after this update read the ledger.
	suite.db.beforeWrite = func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE users SET version = version + 1 WHERE email = ?", "a@x.com")
		return err
	}
	_, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
		l.Transactions = append(l.Transactions, tx("t1", 10, models.Credit))
		l.Balance = decimal.NewFromInt(10)
		return nil
	})
	assert.ErrorIs(suite.T(), err, ErrStaleLedger)

	suite.db.beforeWrite = nil
	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), l.Transactions, "stale write must roll back")
	assert.True(suite.T(), l.Balance.IsZero())
	assert.Equal(suite.T(), int64(0), l.Version)
}

func (suite *DBTestSuite) TestConcurrentUpdatesLoseNothing() {
	suite.createUser("a@x.com")

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.db.UpdateLedger(suite.ctx, "a@x.com", func(l *models.Ledger) error {
				l.Transactions = append(l.Transactions, tx(fmt.Sprintf("t%d", i), 1, models.Credit))
				l.Balance = l.Balance.Add(decimal.NewFromInt(1))
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(suite.T(), err)
	}

	l, err := suite.db.GetLedger(suite.ctx, "a@x.com")
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), l.Transactions, n)
	assert.Equal(suite.T(), fmt.Sprint(n), l.Balance.String())
	assert.Equal(suite.T(), int64(n), l.Version)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
	now time.Time
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
	suite.now = time.Now().Truncate(time.Millisecond)

	_, err = suite.db.CreateUser(suite.ctx, "test@x.com", "hash", "Test")
	require.NoError(suite.T(), err, "failed to create test user")
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) newSession(ttl time.Duration) string {
	token := uuid.NewString()
	err := suite.db.CreateSession(suite.ctx, models.Session{
		Token:        token,
		Email:        "test@x.com",
		CreatedAt:    suite.now,
		ExpiresAt:    suite.now.Add(ttl),
		LastActivity: suite.now,
	})
	require.NoError(suite.T(), err)
	return token
}

func (suite *SessionTestSuite) TestCreateAndGetSession() {
	token := suite.newSession(time.Hour)

	s, err := suite.db.GetSession(suite.ctx, token, suite.now)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "test@x.com", s.Email)
	assert.True(suite.T(), s.ExpiresAt.Equal(suite.now.Add(time.Hour)))
	assert.True(suite.T(), s.LastActivity.Equal(suite.now))
}

func (suite *SessionTestSuite) TestMultipleSessionsPerUser() {
	first := suite.newSession(time.Hour)
	second := suite.newSession(time.Hour)
	assert.NotEqual(suite.T(), first, second)

	for _, token := range []string{first, second} {
		s, err := suite.db.GetSession(suite.ctx, token, suite.now)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "test@x.com", s.Email)
	}
}

func (suite *SessionTestSuite) TestExpiredSessionIsNotFound() {
	token := suite.newSession(time.Minute)

	_, err := suite.db.GetSession(suite.ctx, token, suite.now.Add(time.Minute))
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *SessionTestSuite) TestRenewSession() {
	token := suite.newSession(time.Minute)

	later := suite.now.Add(30 * time.Second)
	err := suite.db.RenewSession(suite.ctx, token, later, later.Add(time.Hour))
	require.NoError(suite.T(), err)

	s, err := suite.db.GetSession(suite.ctx, token, suite.now.Add(10*time.Minute))
	require.NoError(suite.T(), err, "renewed session should outlive its original expiry")
	assert.True(suite.T(), s.LastActivity.Equal(later))
	assert.True(suite.T(), s.ExpiresAt.Equal(later.Add(time.Hour)))
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token := suite.newSession(time.Hour)

	_, err := suite.db.GetSession(suite.ctx, token, suite.now)
	require.NoError(suite.T(), err, "session should exist before deletion")

	err = suite.db.DeleteSession(suite.ctx, token)
	require.NoError(suite.T(), err)

	_, err = suite.db.GetSession(suite.ctx, token, suite.now)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *SessionTestSuite) TestCleanExpiredSessions() {
	short := suite.newSession(time.Minute)
	long := suite.newSession(time.Hour)

	n, err := suite.db.CleanExpiredSessions(suite.ctx, suite.now.Add(2*time.Minute))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)

	_, err = suite.db.GetSession(suite.ctx, short, suite.now)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	_, err = suite.db.GetSession(suite.ctx, long, suite.now)
	assert.NoError(suite.T(), err)
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
