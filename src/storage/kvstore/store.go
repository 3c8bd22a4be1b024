// Package kvstore provides the durable, profile-scoped key/value store the client
// keeps its state in. Missing keys are reported as mo.None, never as errors.
// Concurrent writers are last-write-wins and reads always hit the backing medium.
package kvstore

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/samber/mo"
)

// Well-known keys
const (
	ActiveJobIDKey        = "activeJobId"
	ConnectedPlatformsKey = "connectedPlatforms"
)

// Supported drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const DefaultProfile = "default"

var (
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrInvalidProfile = errors.New("invalid store profile")
)

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store defines the persistent key/value contract
type Store interface {
	// Get returns the value stored under key, or mo.None when absent
	Get(key string) (mo.Option[string], error)

	// Set stores value under key, replacing any previous value
	Set(key, value string) error

	// Remove deletes key; removing a missing key is not an error
	Remove(key string) error
}

// Config selects and configures a store backend
type Config struct {
	Driver  string
	Dir     string
	Profile string
	DSN     string
}

// Open builds the store selected by cfg.Driver. The returned store implements
// io.Closer when it holds resources that need releasing.
func Open(cfg Config) (Store, error) {
	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		return NewFileStore(cfg.Dir, profile)
	case DriverSQLite, DriverPostgres:
		db, err := OpenGorm(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store, err := NewGormStore(db, profile)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

func validateProfile(profile string) error {
	if !profilePattern.MatchString(profile) {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}
	return nil
}
