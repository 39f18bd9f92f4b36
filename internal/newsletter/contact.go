package newsletter

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Auth state buckets used by list filtering and reporting. A canceled contact
// reports as canceled regardless of its authorized flag.
const (
	AuthStateAuthorized = "authorized"
	AuthStateDisabled   = "disabled"
	AuthStateCanceled   = "canceled"
)

const (
	// MaxEmailLength matches the unique email column width.
	MaxEmailLength = 128
	// MaxSourceLength bounds the free-text origin tag; longer values are truncated.
	MaxSourceLength = 32
)

// Contact is one subscriber's persisted subscription state.
type Contact struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Token        string     `json:"-" db:"token"`
	IP           *string    `json:"ip,omitempty" db:"ip"`
	Authorized   bool       `json:"authorized" db:"authorized"`
	Canceled     bool       `json:"canceled" db:"canceled"`
	CancelReason *string    `json:"cancelReason,omitempty" db:"cancel_reason"`
	Source       *string    `json:"source,omitempty" db:"source"`
	AuthorizedAt *time.Time `json:"authorizedAt,omitempty" db:"authorized_at"`
	CanceledAt   *time.Time `json:"canceledAt,omitempty" db:"canceled_at"`
	InsertedAt   time.Time  `json:"insertedAt" db:"inserted_at"`
}

// NewContact builds an unauthorized contact for the given address. The email
// is lower-cased before validation; a malformed or oversized address fails
// with a ValidationError and nothing is created. The verification token is
// generated here, once, and never regenerated.
func NewContact(email string, source, ip *string, now time.Time) (*Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidateEmail(email) {
		return nil, newValidationError("email", "%q is not a valid e-mail address", email)
	}
	if len(email) > MaxEmailLength {
		return nil, newValidationError("email", "%q is too long (max %d characters)", email, MaxEmailLength)
	}

	if source != nil {
		s := *source
		if len(s) > MaxSourceLength {
			s = s[:MaxSourceLength]
		}
		source = &s
	}

	return &Contact{
		ID:         uuid.New(),
		Email:      email,
		Token:      newToken(),
		IP:         ip,
		Source:     source,
		InsertedAt: now,
	}, nil
}

// newToken returns 16 bytes of cryptographic randomness as hex text.
func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// Authorize marks the contact as confirmed. Repeat calls keep authorized=true
// and refresh AuthorizedAt, recording the most recent explicit confirmation.
// Canceling state is cleared; the client IP is backfilled if it was never
// captured at registration.
func (c *Contact) Authorize(ip *string, now time.Time) {
	c.Authorized = true
	t := now
	c.AuthorizedAt = &t
	c.Canceled = false
	c.CanceledAt = nil
	if c.IP == nil {
		c.IP = ip
	}
}

// UnAuthorize clears the authorized flag. Cancel state and timestamps are
// left untouched.
func (c *Contact) UnAuthorize() {
	c.Authorized = false
}

// Cancel marks the contact as opted out. The authorized flag is preserved so
// "was confirmed, later canceled" remains distinguishable.
func (c *Contact) Cancel(reason *string, now time.Time) {
	c.Canceled = true
	c.CancelReason = reason
	t := now
	c.CanceledAt = &t
}

// IsActive reports whether the contact should receive mailings.
func (c *Contact) IsActive() bool {
	return c.Authorized && !c.Canceled
}

// AuthState buckets the contact for filtering: canceled wins over authorized.
func (c *Contact) AuthState() string {
	if c.Canceled {
		return AuthStateCanceled
	}
	if c.Authorized {
		return AuthStateAuthorized
	}
	return AuthStateDisabled
}
