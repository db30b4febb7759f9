// Package timezone converts between the configured local zone and UTC.
//
// Everything persisted is UTC; everything shown to the user is local. The zone
// identifier is read from configuration on every call so a runtime change is
// picked up without a restart.
package timezone

import (
	"errors"
	"fmt"
	"time"
)

// ConfigKey is the configuration key holding the IANA zone identifier.
const ConfigKey = "timezone"

// DefaultZone is used when no zone is configured.
const DefaultZone = "UTC"

// ErrUnknownZone is returned when the configured identifier cannot be resolved.
var ErrUnknownZone = errors.New("unknown time zone")

// Getter is the read side of the configuration store.
type Getter interface {
	Get(key string) (string, bool)
}

// Boundary resolves the active zone and converts instants across it.
type Boundary struct {
	cfg      Getter
	fallback string
	now      func() time.Time
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithFallback sets the zone used when the configuration has no value.
func WithFallback(zone string) Option {
	return func(b *Boundary) { b.fallback = zone }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Boundary) { b.now = now }
}

// New creates a Boundary reading the zone from cfg. A nil cfg always uses the fallback.
func New(cfg Getter, opts ...Option) *Boundary {
	b := &Boundary{
		cfg:      cfg,
		fallback: DefaultZone,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fixed returns a Boundary pinned to zone.
func Fixed(zone string, opts ...Option) *Boundary {
	return New(nil, append([]Option{WithFallback(zone)}, opts...)...)
}

// UTC returns a Boundary pinned to UTC that shares b's clock.
func (b *Boundary) UTC() *Boundary {
	return &Boundary{fallback: "UTC", now: b.now}
}

// Zone returns the identifier currently in effect.
func (b *Boundary) Zone() string {
	if b.cfg != nil {
		if v, ok := b.cfg.Get(ConfigKey); ok && v != "" {
			return v
		}
	}
	return b.fallback
}

// Location resolves the configured zone.
func (b *Boundary) Location() (*time.Location, error) {
	zone := b.Zone()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownZone, zone, err)
	}
	return loc, nil
}

// Now returns the current instant in UTC.
func (b *Boundary) Now() time.Time {
	return b.now().UTC()
}

// LocalNow returns the current instant in the configured zone.
func (b *Boundary) LocalNow() (time.Time, error) {
	return b.ToLocal(b.now())
}

// ToLocal returns t expressed in the configured zone.
func (b *Boundary) ToLocal(t time.Time) (time.Time, error) {
	loc, err := b.Location()
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// ToUTC interprets the wall clock of local in the configured zone and returns
// the matching UTC instant. The location already attached to local is ignored,
// so a naive wall-clock value (for example one built in time.UTC) is treated as
// local time.
func (b *Boundary) ToUTC(local time.Time) (time.Time, error) {
	loc, err := b.Location()
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := local.Date()
	h, mi, s := local.Clock()
	return time.Date(y, mo, d, h, mi, s, local.Nanosecond(), loc).UTC(), nil
}

// ToLocalPtr converts an optional instant.
func (b *Boundary) ToLocalPtr(t *time.Time) (*time.Time, error) {
	if t == nil {
		return nil, nil
	}
	local, err := b.ToLocal(*t)
	if err != nil {
		return nil, err
	}
	return &local, nil
}
