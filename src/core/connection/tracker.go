// Package connection tracks which distribution platforms the user has connected.
// The record lives in the key/value store and is re-read on every query, so a
// change written by another process is seen within one refresh interval.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"adwise/src/core/schedule"
	"adwise/src/log"
	"adwise/src/storage/kvstore"
)

const DefaultRefreshInterval = time.Second

type Platform string

const (
	Instagram Platform = "instagram"
	YouTube   Platform = "youtube"
	WhatsApp  Platform = "whatsapp"
)

var (
	ErrUnknownPlatform    = errors.New("unknown platform")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Platforms returns the fixed platform set in display order
func Platforms() []Platform {
	return []Platform{Instagram, YouTube, WhatsApp}
}

// ParsePlatform matches s case-insensitively against the platform set
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Instagram, YouTube, WhatsApp:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// Record is the persisted platform → connected snapshot. A platform missing
// from the stored document decodes as false.
type Record struct {
	Instagram bool `json:"instagram"`
	YouTube   bool `json:"youtube"`
	WhatsApp  bool `json:"whatsapp"`
}

// Connected reports the flag of a single platform
func (r Record) Connected(p Platform) bool {
	switch p {
	case Instagram:
		return r.Instagram
	case YouTube:
		return r.YouTube
	case WhatsApp:
		return r.WhatsApp
	}
	return false
}

// AllConnected is true iff every platform is connected
func (r Record) AllConnected() bool {
	return r.Instagram && r.YouTube && r.WhatsApp
}

func (r Record) with(p Platform, value bool) Record {
	switch p {
	case Instagram:
		r.Instagram = value
	case YouTube:
		r.YouTube = value
	case WhatsApp:
		r.WhatsApp = value
	}
	return r
}

// Credentials collected by a connect flow. WhatsApp needs only a phone number,
// the other platforms need a username and password.
type Credentials struct {
	Username    string
	Password    string
	PhoneNumber string
}

func (c Credentials) validFor(p Platform) bool {
	if p == WhatsApp {
		return strings.TrimSpace(c.PhoneNumber) != ""
	}
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Tracker reads and writes the connection record
type Tracker struct {
	store    kvstore.Store
	interval time.Duration
	logger   logr.Logger

	mu      sync.Mutex
	refresh *schedule.Task
}

type Option func(*Tracker)

// WithRefreshInterval overrides the refresh cadence used by Start
func WithRefreshInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithLogger(l logr.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

func NewTracker(store kvstore.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		interval: DefaultRefreshInterval,
		logger:   log.WithName("connection"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot reads the persisted record. Nothing persisted means all false.
func (t *Tracker) Snapshot() (Record, error) {
	stored, err := t.store.Get(kvstore.ConnectedPlatformsKey)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read connection record: %w", err)
	}

	raw, ok := stored.Get()
	if !ok || strings.TrimSpace(raw) == "" {
		return Record{}, nil
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, fmt.Errorf("failed to decode connection record: %w", err)
	}
	return record, nil
}

// SetConnected updates one platform's flag and persists the full record
func (t *Tracker) SetConnected(p Platform, value bool) error {
	if _, err := ParsePlatform(string(p)); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record, err := t.Snapshot()
	if err != nil {
		// an unreadable record is replaced rather than blocking every connect
		t.logger.Error(err, "Discarding unreadable connection record")
		record = Record{}
	}
	record = record.with(p, value)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode connection record: %w", err)
	}
	if err := t.store.Set(kvstore.ConnectedPlatformsKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist connection record: %w", err)
	}

	t.logger.Info("Platform connection updated", "platform", p, "connected", value)
	return nil
}

// IsAllConnected re-reads the store on every call. A missing or unreadable
// record counts as not connected.
func (t *Tracker) IsAllConnected() (bool, error) {
	record, err := t.Snapshot()
	if err != nil {
		return false, err
	}
	return record.AllConnected(), nil
}

// Connect completes a connect flow for p. The credentials are only checked for
// presence; no network call is made.
func (t *Tracker) Connect(p Platform, creds Credentials) error {
	if _, err := ParsePlatform(string(p)); err != nil {
		return err
	}
	if !creds.validFor(p) {
		if p == WhatsApp {
			return fmt.Errorf("%w: %s requires a phone number", ErrInvalidCredentials, p)
		}
		return fmt.Errorf("%w: %s requires a username and password", ErrInvalidCredentials, p)
	}
	return t.SetConnected(p, true)
}

func (t *Tracker) Disconnect(p Platform) error {
	return t.SetConnected(p, false)
}

// Start begins the periodic refresh, replacing any running one. onChange is
// called with the initial snapshot and then whenever a refresh reads a record
// different from the previous one. onChange must not call Stop.
func (t *Tracker) Start(ctx context.Context, onChange func(Record)) {
	if onChange == nil {
		onChange = func(Record) {}
	}

	t.Stop()

	last, err := t.Snapshot()
	if err != nil {
		t.logger.Error(err, "Failed to read connection record")
	}
	onChange(last)

	task := schedule.Every(ctx, t.interval, func(ctx context.Context) bool {
		record, err := t.Snapshot()
		if err != nil {
			t.logger.Error(err, "Failed to refresh connection record")
			return true
		}
		if record == last {
			return true
		}
		t.logger.V(1).Info("Connection record changed", "record", record)
		last = record
		onChange(record)
		return true
	})

	t.mu.Lock()
	previous := t.refresh
	t.refresh = task
	t.mu.Unlock()
	previous.Stop()
}

// Stop cancels the refresh task and waits for an in-flight refresh to return.
// Calling it when nothing runs is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	task := t.refresh
	t.refresh = nil
	t.mu.Unlock()

	if task != nil {
		task.Stop()
		<-task.Done()
	}
}
