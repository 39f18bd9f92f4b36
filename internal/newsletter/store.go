package newsletter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SourceNone is the filter sentinel selecting contacts with no source tag.
const SourceNone = "--none--"

// Filter narrows admin list queries.
type Filter struct {
	// EmailContains matches case-insensitively anywhere in the address.
	EmailContains string
	// Source matches exactly; SourceNone selects records with a NULL source.
	Source string
	// AuthState is one of the AuthState* buckets, empty for all.
	AuthState string
}

// Store provides database operations for newsletter contacts
type Store struct {
	db *sql.DB
}

// NewStore creates a new contact store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const contactColumns = `id, email, token, ip, authorized, canceled, cancel_reason, source,
	authorized_at, canceled_at, inserted_at`

func scanContact(row interface{ Scan(...interface{}) error }) (*Contact, error) {
	c := &Contact{}
	err := row.Scan(&c.ID, &c.Email, &c.Token, &c.IP, &c.Authorized, &c.Canceled,
		&c.CancelReason, &c.Source, &c.AuthorizedAt, &c.CanceledAt, &c.InsertedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Insert persists a freshly constructed contact. A unique-constraint hit on
// email or token comes back as ErrDuplicate.
func (s *Store) Insert(ctx context.Context, c *Contact) error {
	query := `INSERT INTO newsletter_contacts (id, email, token, ip, authorized, canceled,
		cancel_reason, source, authorized_at, canceled_at, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.Email, c.Token, c.IP, c.Authorized,
		c.Canceled, c.CancelReason, c.Source, c.AuthorizedAt, c.CanceledAt, c.InsertedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicate
	}
	return err
}

// Update writes the mutable fields back. Email, token and inserted_at are
// immutable and deliberately absent from the statement.
func (s *Store) Update(ctx context.Context, c *Contact) error {
	query := `UPDATE newsletter_contacts SET ip = $1, authorized = $2, canceled = $3,
		cancel_reason = $4, source = $5, authorized_at = $6, canceled_at = $7
		WHERE id = $8`

	res, err := s.db.ExecContext(ctx, query, c.IP, c.Authorized, c.Canceled,
		c.CancelReason, c.Source, c.AuthorizedAt, c.CanceledAt, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a contact by primary identifier
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM newsletter_contacts WHERE id = $1`

	c, err := scanContact(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// GetByEmail retrieves the single contact for a normalized address. Zero
// matches fail with ErrNotFound, more than one with ErrAmbiguous.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM newsletter_contacts WHERE email = $1 LIMIT 2`
	return s.getSingle(ctx, query, email)
}

// GetByToken resolves a verification token to exactly one contact. Fails
// closed: zero or ambiguous matches are errors.
func (s *Store) GetByToken(ctx context.Context, token string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM newsletter_contacts WHERE token = $1 LIMIT 2`
	return s.getSingle(ctx, query, token)
}

func (s *Store) getSingle(ctx context.Context, query string, arg interface{}) (*Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(contacts) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return contacts[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// List retrieves one page of contacts plus the total count for the filter.
// Most recently authorized contacts sort first; never-authorized ones last.
func (s *Store) List(ctx context.Context, filter Filter, page, limit int) ([]*Contact, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 32
	}

	where := " WHERE 1=1"
	var args []interface{}
	argNum := 1

	if filter.EmailContains != "" {
		where += fmt.Sprintf(" AND email ILIKE $%d", argNum)
		args = append(args, "%"+filter.EmailContains+"%")
		argNum++
	}
	switch filter.Source {
	case "":
	case SourceNone:
		where += " AND source IS NULL"
	default:
		where += fmt.Sprintf(" AND source = $%d", argNum)
		args = append(args, filter.Source)
		argNum++
	}
	// Canceled wins over authorized when bucketing.
	switch filter.AuthState {
	case AuthStateCanceled:
		where += " AND canceled = TRUE"
	case AuthStateAuthorized:
		where += " AND authorized = TRUE"
	case AuthStateDisabled:
		where += " AND authorized = FALSE"
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM newsletter_contacts` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contactColumns + ` FROM newsletter_contacts` + where +
		fmt.Sprintf(" ORDER BY authorized_at DESC NULLS LAST LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// DistinctSources returns every source tag in use. hasNoSource reports
// whether untagged contacts exist, so the UI can offer the "no source" filter.
func (s *Store) DistinctSources(ctx context.Context) (sources []string, hasNoSource bool, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM newsletter_contacts ORDER BY source`)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var source sql.NullString
		if err := rows.Scan(&source); err != nil {
			return nil, false, err
		}
		if source.Valid {
			sources = append(sources, source.String)
		} else {
			hasNoSource = true
		}
	}
	return sources, hasNoSource, rows.Err()
}

// KnownEmails reports which of the given normalized addresses already have a
// contact record.
func (s *Store) KnownEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(emails) == 0 {
		return known, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT email FROM newsletter_contacts WHERE email = ANY($1)`, pq.Array(emails))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		known[email] = true
	}
	return known, rows.Err()
}

// Delete physically removes a contact by id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM newsletter_contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByEmail physically removes the contact for a normalized address.
func (s *Store) DeleteByEmail(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM newsletter_contacts WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes, in one bounded pass, authorized contacts confirmed
// before authorizedBefore and unauthorized contacts inserted before
// unauthorizedBefore. Returns how many rows went away.
func (s *Store) DeleteExpired(ctx context.Context, authorizedBefore, unauthorizedBefore time.Time, limit int) (int64, error) {
	query := `DELETE FROM newsletter_contacts WHERE id IN (
		SELECT id FROM newsletter_contacts
		WHERE (authorized = TRUE AND authorized_at <= $1)
		   OR (authorized = FALSE AND inserted_at <= $2)
		LIMIT $3)`

	res, err := s.db.ExecContext(ctx, query, authorizedBefore, unauthorizedBefore, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AllForExport streams every contact ordered by insertion date, newest first.
func (s *Store) AllForExport(ctx context.Context) ([]*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM newsletter_contacts ORDER BY inserted_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
