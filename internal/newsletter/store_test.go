package newsletter

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

var contactCols = []string{"id", "email", "token", "ip", "authorized", "canceled",
	"cancel_reason", "source", "authorized_at", "canceled_at", "inserted_at"}

func addContactRow(rows *sqlmock.Rows, c *Contact) *sqlmock.Rows {
	return rows.AddRow(c.ID, c.Email, c.Token, c.IP, c.Authorized, c.Canceled,
		c.CancelReason, c.Source, c.AuthorizedAt, c.CanceledAt, c.InsertedAt)
}

func testContact(t *testing.T, email string) *Contact {
	c, err := NewContact(email, nil, nil, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func TestStoreInsert(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectExec("INSERT INTO newsletter_contacts").
		WithArgs(c.ID, c.Email, c.Token, c.IP, c.Authorized, c.Canceled,
			c.CancelReason, c.Source, c.AuthorizedAt, c.CanceledAt, c.InsertedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Insert(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInsertDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectExec("INSERT INTO newsletter_contacts").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Insert(context.Background(), c)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStoreUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectExec("UPDATE newsletter_contacts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), c)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetByID(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE id").
		WithArgs(c.ID).
		WillReturnRows(addContactRow(sqlmock.NewRows(contactCols), c))

	got, err := store.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, c.Token, got.Token)
}

func TestStoreGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE id").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE email").
		WithArgs("user@example.com").
		WillReturnRows(addContactRow(sqlmock.NewRows(contactCols), c))

	got, err := store.GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestStoreGetByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE email").
		WillReturnRows(sqlmock.NewRows(contactCols))

	_, err := store.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetByTokenAmbiguous(t *testing.T) {
	store, mock := newMockStore(t)
	a := testContact(t, "a@example.com")
	b := testContact(t, "b@example.com")
	b.Token = a.Token

	rows := sqlmock.NewRows(contactCols)
	addContactRow(rows, a)
	addContactRow(rows, b)
	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE token").
		WithArgs(a.Token).
		WillReturnRows(rows)

	_, err := store.GetByToken(context.Background(), a.Token)
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestStoreList(t *testing.T) {
	store, mock := newMockStore(t)
	c := testContact(t, "user@example.com")

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM newsletter_contacts`).
		WithArgs("%example%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE 1=1 AND email ILIKE (.+) ORDER BY authorized_at DESC NULLS LAST").
		WithArgs("%example%", 20, 20).
		WillReturnRows(addContactRow(sqlmock.NewRows(contactCols), c))

	contacts, total, err := store.List(context.Background(),
		Filter{EmailContains: "example"}, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	require.Len(t, contacts, 1)
	assert.Equal(t, "user@example.com", contacts[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM newsletter_contacts WHERE 1=1 AND source IS NULL AND canceled = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts WHERE 1=1 AND source IS NULL AND canceled = TRUE").
		WithArgs(32, 0).
		WillReturnRows(sqlmock.NewRows(contactCols))

	contacts, total, err := store.List(context.Background(),
		Filter{Source: SourceNone, AuthState: AuthStateCanceled}, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, contacts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDistinctSources(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"source"}).
		AddRow(nil).
		AddRow("checkout").
		AddRow("footer")
	mock.ExpectQuery("SELECT DISTINCT source FROM newsletter_contacts").
		WillReturnRows(rows)

	sources, hasNoSource, err := store.DistinctSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout", "footer"}, sources)
	assert.True(t, hasNoSource)
}

func TestStoreKnownEmails(t *testing.T) {
	store, mock := newMockStore(t)

	emails := []string{"a@example.com", "b@example.com"}
	mock.ExpectQuery(`SELECT email FROM newsletter_contacts WHERE email = ANY`).
		WithArgs(pq.Array(emails)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@example.com"))

	known, err := store.KnownEmails(context.Background(), emails)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a@example.com": true}, known)
}

func TestStoreKnownEmailsEmptyInput(t *testing.T) {
	store, _ := newMockStore(t)

	known, err := store.KnownEmails(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, known, "no query runs for an empty address list")
}

func TestStoreDelete(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM newsletter_contacts WHERE id").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM newsletter_contacts WHERE id").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Delete(context.Background(), id), ErrNotFound)
}

func TestStoreDeleteExpired(t *testing.T) {
	store, mock := newMockStore(t)

	authorizedBefore := time.Date(1926, 3, 1, 0, 0, 0, 0, time.UTC)
	unauthorizedBefore := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM newsletter_contacts WHERE id IN").
		WithArgs(authorizedBefore, unauthorizedBefore, 1000).
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := store.DeleteExpired(context.Background(),
		authorizedBefore, unauthorizedBefore, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}

func TestStoreAllForExport(t *testing.T) {
	store, mock := newMockStore(t)
	a := testContact(t, "a@example.com")
	b := testContact(t, "b@example.com")

	rows := sqlmock.NewRows(contactCols)
	addContactRow(rows, b)
	addContactRow(rows, a)
	mock.ExpectQuery("SELECT (.+) FROM newsletter_contacts ORDER BY inserted_at DESC").
		WillReturnRows(rows)

	contacts, err := store.AllForExport(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "b@example.com", contacts[0].Email)
}
