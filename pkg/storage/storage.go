package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Supported drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// DefaultOrigin is the namespace used when Options.Origin is empty
const DefaultOrigin = "ticketdesk"

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("storage is closed")

var originRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Storage is a durable string key/value store scoped to one origin
type Storage interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)
	// Set writes value for key
	Set(key, value string) error
	// Remove deletes key; removing a missing key is not an error
	Remove(key string) error
	Close() error
}

// Options selects and configures a storage driver
type Options struct {
	Driver string
	// Path is a directory for the file driver and a database file for sqlite
	Path   string
	Origin string
}

// Open creates the storage described by opts
func Open(opts Options) (Storage, error) {
	if opts.Origin == "" {
		opts.Origin = DefaultOrigin
	}
	if err := ValidateOrigin(opts.Origin); err != nil {
		return nil, err
	}

	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		return NewFileStore(opts.Path, opts.Origin)
	case DriverSQLite:
		if opts.Path != "" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
				return nil, fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
		return NewSQLite(opts.Path, opts.Origin)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", opts.Driver)
	}
}

// ValidateOrigin checks an origin name is safe to use as a file name
func ValidateOrigin(origin string) error {
	if origin == "" {
		return fmt.Errorf("origin cannot be empty")
	}
	if !originRegex.MatchString(origin) || origin == "." || origin == ".." {
		return fmt.Errorf("invalid origin: %q", origin)
	}
	return nil
}
