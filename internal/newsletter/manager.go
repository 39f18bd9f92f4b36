package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/mailer"
	"github.com/ignite/newsletter/internal/settings"
)

// ContactStore is the repository contract the lifecycle service depends on.
// *Store satisfies it; tests substitute an in-memory fake.
type ContactStore interface {
	Insert(ctx context.Context, c *Contact) error
	Update(ctx context.Context, c *Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	GetByEmail(ctx context.Context, email string) (*Contact, error)
	GetByToken(ctx context.Context, token string) (*Contact, error)
	List(ctx context.Context, filter Filter, page, limit int) ([]*Contact, int, error)
	DistinctSources(ctx context.Context) ([]string, bool, error)
	KnownEmails(ctx context.Context, emails []string) (map[string]bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, authorizedBefore, unauthorizedBefore time.Time, limit int) (int64, error)
	AllForExport(ctx context.Context) ([]*Contact, error)
}

// Options tunes the lifecycle service.
type Options struct {
	// BaseURL and VerificationPath assemble confirmation links:
	// <BaseURL>/<VerificationPath>/<token>.
	BaseURL          string
	VerificationPath string
	// ImportFlushSize bounds the write buffer during bulk import.
	ImportFlushSize int
	// SweepLimit caps a single retention sweep.
	SweepLimit int
	// SweepOnRegister runs a best-effort sweep after each registration when
	// the retention policy is active.
	SweepOnRegister bool
}

// Manager orchestrates the subscription lifecycle: double opt-in
// registration, token confirmation, admin state flips, bulk import, and the
// retention sweep.
type Manager struct {
	store     ContactStore
	sender    mailer.Sender
	templates *mailer.Templates
	settings  settings.Store
	logger    *log.Logger

	baseURL          string
	verificationPath string
	importFlushSize  int
	sweepLimit       int
	sweepOnRegister  bool

	// now is injectable for tests.
	now func() time.Time
}

// NewManager creates the lifecycle service.
func NewManager(store ContactStore, sender mailer.Sender, templates *mailer.Templates,
	settingsStore settings.Store, logger *log.Logger, opts Options) *Manager {
	if opts.ImportFlushSize <= 0 {
		opts.ImportFlushSize = 100
	}
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = 1000
	}
	if opts.VerificationPath == "" {
		opts.VerificationPath = "newsletter-verification"
	}
	return &Manager{
		store:            store,
		sender:           sender,
		templates:        templates,
		settings:         settingsStore,
		logger:           logger,
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		verificationPath: strings.Trim(opts.VerificationPath, "/"),
		importFlushSize:  opts.ImportFlushSize,
		sweepLimit:       opts.SweepLimit,
		sweepOnRegister:  opts.SweepOnRegister,
		now:              time.Now,
	}
}

// VerificationLink returns the public confirmation URL for a token.
func (m *Manager) VerificationLink(token string) string {
	return fmt.Sprintf("%s/%s/%s", m.baseURL, m.verificationPath, token)
}

// Register subscribes an address. Re-submitting a known address is a silent
// no-op, so registration is idempotent. For a new address the contact is
// persisted first and the verification e-mail sent after: a delivery failure
// never rolls the record back, but it is returned so the caller can tell the
// visitor. When the retention policy is active a bounded sweep runs at the
// end of the registration path.
func (m *Manager) Register(ctx context.Context, email string, source, ip *string) error {
	registerErr := m.registerNew(ctx, email, source, ip)

	if m.sweepOnRegister {
		if active, err := m.RetentionActive(ctx); err == nil && active {
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Printf("[newsletter] retention sweep after register failed: %v", err)
			}
		}
	}

	return registerErr
}

func (m *Manager) registerNew(ctx context.Context, email string, source, ip *string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	_, err := m.store.GetByEmail(ctx, normalized)
	if err == nil {
		// Already registered: idempotent no-op.
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	contact, err := NewContact(email, source, ip, m.now())
	if err != nil {
		return err
	}
	if err := m.store.Insert(ctx, contact); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent registration for the same
			// address; the other writer won and that is fine.
			return nil
		}
		return err
	}

	return m.SendVerification(ctx, contact, nil)
}

// SendVerification persists any pending change to the contact, then sends the
// confirmation e-mail so the message always reflects committed state.
func (m *Manager) SendVerification(ctx context.Context, contact *Contact, overrides map[string]string) error {
	if err := m.store.Update(ctx, contact); err != nil {
		return err
	}

	msg, err := m.templates.Verification(contact.Email, m.VerificationLink(contact.Token), overrides)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Printf("[newsletter] verification mail to %s failed: %v", contact.Email, err)
		return err
	}
	return nil
}

// AuthorizeByToken resolves a confirmation link. An unknown token fails with
// ErrNotFound. Once the token resolves, the confirmation is treated as
// successful from the visitor's perspective: a failure persisting the flip is
// logged, not returned. Re-visiting a consumed link re-authorizes and
// refreshes the confirmation timestamp.
func (m *Manager) AuthorizeByToken(ctx context.Context, token string, ip *string) error {
	contact, err := m.store.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	contact.Authorize(ip, m.now())
	if err := m.store.Update(ctx, contact); err != nil {
		m.logger.Printf("[newsletter] persisting confirmation for %s failed: %v", contact.Email, err)
	}
	return nil
}

// SetAuthorized flips the authorized flag by id for the admin console.
// Authorizing refreshes the confirmation timestamp and clears cancel state;
// un-authorizing touches nothing else.
func (m *Manager) SetAuthorized(ctx context.Context, id uuid.UUID, authorized bool) error {
	contact, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if authorized {
		contact.Authorize(nil, m.now())
	} else {
		contact.UnAuthorize()
	}
	return m.store.Update(ctx, contact)
}

// CancelByID marks a contact as opted out, keeping its authorized flag.
func (m *Manager) CancelByID(ctx context.Context, id uuid.UUID, reason *string) error {
	contact, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	contact.Cancel(reason, m.now())
	return m.store.Update(ctx, contact)
}

// DeleteByID physically removes a contact.
func (m *Manager) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return m.store.Delete(ctx, id)
}

// DeleteByEmail physically removes the contact for an address, e.g. an
// unsubscribe-by-email request.
func (m *Manager) DeleteByEmail(ctx context.Context, email string) error {
	return m.store.DeleteByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches one contact for the admin console.
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*Contact, error) {
	return m.store.GetByID(ctx, id)
}

// List returns one filtered page of contacts plus the total match count.
func (m *Manager) List(ctx context.Context, filter Filter, page, limit int) ([]*Contact, int, error) {
	return m.store.List(ctx, filter, page, limit)
}

// SourceOptions lists every source tag in use; hasNoSource reports whether
// untagged contacts exist.
func (m *Manager) SourceOptions(ctx context.Context) ([]string, bool, error) {
	return m.store.DistinctSources(ctx)
}

// Analyze extracts addresses from free text and reports, without mutating
// anything, which of them already have a contact record.
func (m *Manager) Analyze(ctx context.Context, haystack string) (map[string]bool, error) {
	emails := ExtractEmails(haystack)
	known, err := m.store.KnownEmails(ctx, normalizeAll(emails))
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(emails))
	for _, email := range emails {
		result[email] = known[strings.ToLower(email)]
	}
	return result, nil
}

// ImportResult summarizes one bulk import pass.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Import persists every address not yet known to the store as a new
// unauthorized contact tagged with source. Writes flush in batches to bound
// memory on large imports. Malformed rows never abort the batch; they are
// skipped, counted, and logged.
func (m *Manager) Import(ctx context.Context, emails []string, source *string) (ImportResult, error) {
	return m.bulkInsert(ctx, emails, source, false)
}

// BulkRegister is Import for trusted lists: the created contacts are marked
// authorized immediately, skipping double opt-in.
func (m *Manager) BulkRegister(ctx context.Context, emails []string, source *string) (ImportResult, error) {
	return m.bulkInsert(ctx, emails, source, true)
}

func (m *Manager) bulkInsert(ctx context.Context, emails []string, source *string, preAuthorized bool) (ImportResult, error) {
	var result ImportResult

	deduped := dedupe(emails)
	known, err := m.store.KnownEmails(ctx, normalizeAll(deduped))
	if err != nil {
		return result, err
	}

	var batch []*Contact
	flush := func() error {
		for _, contact := range batch {
			if err := m.store.Insert(ctx, contact); err != nil {
				if errors.Is(err, ErrDuplicate) {
					result.Imported--
					result.Skipped++
					continue
				}
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	for _, email := range deduped {
		if known[strings.ToLower(strings.TrimSpace(email))] {
			result.Skipped++
			continue
		}
		contact, err := NewContact(email, source, nil, m.now())
		if err != nil {
			// Skip malformed rows, keep the batch going.
			result.Invalid++
			continue
		}
		if preAuthorized {
			contact.Authorize(nil, m.now())
		}
		batch = append(batch, contact)
		result.Imported++

		if len(batch) >= m.importFlushSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if result.Invalid > 0 {
		m.logger.Printf("[newsletter] import skipped %d malformed address(es)", result.Invalid)
	}
	return result, nil
}

// Export renders every contact as the semicolon-delimited table admins
// download.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	contacts, err := m.store.AllForExport(ctx)
	if err != nil {
		return nil, err
	}
	return exportCSV(contacts), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func normalizeAll(emails []string) []string {
	out := make([]string, len(emails))
	for i, email := range emails {
		out[i] = strings.ToLower(strings.TrimSpace(email))
	}
	return out
}
