package newsletter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings store keys for the retention policy. The namespace isolates them
// from other modules sharing the same key-value store.
const (
	settingsNamespace         = "newsletter"
	keyAutoRemoveAuthorized   = "auto-remove--authorized"
	keyAutoRemoveUnauthorized = "auto-remove--un-authorized"
	keyAutoRemoveActive       = "should-remove-records"

	// DefaultAuthorizedRetention keeps confirmed contacts effectively forever.
	DefaultAuthorizedRetention = "99 years"
	// DefaultUnauthorizedRetention purges never-confirmed addresses quickly.
	DefaultUnauthorizedRetention = "14 days"
)

// Interval is a human-readable relative time span such as "14 days" or
// "99 years". Calendar units apply via AddDate so "1 month" means one
// calendar month, not an hour count.
type Interval struct {
	count int
	unit  string
}

// ParseInterval parses "N unit" with unit one of second, minute, hour, day,
// week, month, year (plural accepted). Anything else fails with a
// ValidationError.
func ParseInterval(s string) (Interval, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return Interval{}, newValidationError("interval",
			"%q is not a valid interval; did you mean \"14 days\" for instance?", s)
	}

	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return Interval{}, newValidationError("interval",
			"%q is not a valid interval; did you mean \"14 days\" for instance?", s)
	}

	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second", "minute", "hour", "day", "week", "month", "year":
		return Interval{count: count, unit: unit}, nil
	default:
		return Interval{}, newValidationError("interval",
			"%q is not a valid interval; did you mean \"14 days\" for instance?", s)
	}
}

// SubtractFrom returns t minus the interval.
func (iv Interval) SubtractFrom(t time.Time) time.Time {
	switch iv.unit {
	case "second":
		return t.Add(-time.Duration(iv.count) * time.Second)
	case "minute":
		return t.Add(-time.Duration(iv.count) * time.Minute)
	case "hour":
		return t.Add(-time.Duration(iv.count) * time.Hour)
	case "day":
		return t.AddDate(0, 0, -iv.count)
	case "week":
		return t.AddDate(0, 0, -7*iv.count)
	case "month":
		return t.AddDate(0, -iv.count, 0)
	case "year":
		return t.AddDate(-iv.count, 0, 0)
	}
	return t
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d %ss", iv.count, iv.unit)
}

// RetentionSettings is the admin-facing view of the retention policy.
type RetentionSettings struct {
	AuthorizedRetention   string `json:"autoRemoveAuthorized"`
	UnauthorizedRetention string `json:"autoRemoveUnAuthorized"`
	Active                bool   `json:"shouldRemoveRecords"`
}

// AuthorizedRetention returns the retention interval for confirmed contacts.
// The default is written back on first read so admins see a concrete value.
func (m *Manager) AuthorizedRetention(ctx context.Context) (string, error) {
	return m.retentionValue(ctx, keyAutoRemoveAuthorized, DefaultAuthorizedRetention)
}

// UnauthorizedRetention returns the retention interval for contacts that
// never confirmed.
func (m *Manager) UnauthorizedRetention(ctx context.Context) (string, error) {
	return m.retentionValue(ctx, keyAutoRemoveUnauthorized, DefaultUnauthorizedRetention)
}

func (m *Manager) retentionValue(ctx context.Context, key, fallback string) (string, error) {
	value, ok, err := m.settings.Get(ctx, key, settingsNamespace)
	if err != nil {
		return "", err
	}
	if !ok {
		if err := m.settings.Save(ctx, key, fallback, settingsNamespace); err != nil {
			return "", err
		}
		return fallback, nil
	}
	return value, nil
}

// SetAuthorizedRetention validates and stores the interval for confirmed
// contacts. Unparsable values fail with a ValidationError and are never
// persisted.
func (m *Manager) SetAuthorizedRetention(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if _, err := ParseInterval(value); err != nil {
		return err
	}
	return m.settings.Save(ctx, keyAutoRemoveAuthorized, value, settingsNamespace)
}

// SetUnauthorizedRetention validates and stores the interval for
// never-confirmed contacts.
func (m *Manager) SetUnauthorizedRetention(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if _, err := ParseInterval(value); err != nil {
		return err
	}
	return m.settings.Save(ctx, keyAutoRemoveUnauthorized, value, settingsNamespace)
}

// RetentionActive reports whether the sweep runs at all; defaults to true on
// first read.
func (m *Manager) RetentionActive(ctx context.Context) (bool, error) {
	value, ok, err := m.settings.Get(ctx, keyAutoRemoveActive, settingsNamespace)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := m.SetRetentionActive(ctx, true); err != nil {
			return false, err
		}
		return true, nil
	}
	return value == "true", nil
}

// SetRetentionActive toggles the sweep.
func (m *Manager) SetRetentionActive(ctx context.Context, active bool) error {
	value := "false"
	if active {
		value = "true"
	}
	return m.settings.Save(ctx, keyAutoRemoveActive, value, settingsNamespace)
}

// Settings returns the full retention policy for the admin UI, materializing
// defaults as needed.
func (m *Manager) Settings(ctx context.Context) (RetentionSettings, error) {
	authorized, err := m.AuthorizedRetention(ctx)
	if err != nil {
		return RetentionSettings{}, err
	}
	unauthorized, err := m.UnauthorizedRetention(ctx)
	if err != nil {
		return RetentionSettings{}, err
	}
	active, err := m.RetentionActive(ctx)
	if err != nil {
		return RetentionSettings{}, err
	}
	return RetentionSettings{
		AuthorizedRetention:   authorized,
		UnauthorizedRetention: unauthorized,
		Active:                active,
	}, nil
}

// SaveSettings validates and stores the whole policy. The first invalid field
// aborts; values already written stay written, mirroring per-field saves.
func (m *Manager) SaveSettings(ctx context.Context, s RetentionSettings) error {
	if err := m.SetAuthorizedRetention(ctx, s.AuthorizedRetention); err != nil {
		return err
	}
	if err := m.SetUnauthorizedRetention(ctx, s.UnauthorizedRetention); err != nil {
		return err
	}
	return m.SetRetentionActive(ctx, s.Active)
}

// Sweep deletes stale contacts in one bounded pass: authorized ones whose
// confirmation is older than the authorized retention, and unauthorized ones
// inserted before the unauthorized retention. Returns the number removed.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	authorizedRaw, err := m.AuthorizedRetention(ctx)
	if err != nil {
		return 0, err
	}
	unauthorizedRaw, err := m.UnauthorizedRetention(ctx)
	if err != nil {
		return 0, err
	}

	authorized, err := ParseInterval(authorizedRaw)
	if err != nil {
		return 0, err
	}
	unauthorized, err := ParseInterval(unauthorizedRaw)
	if err != nil {
		return 0, err
	}

	now := m.now()
	return m.store.DeleteExpired(ctx,
		authorized.SubtractFrom(now), unauthorized.SubtractFrom(now), m.sweepLimit)
}
