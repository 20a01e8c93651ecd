package config

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading from stdin
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard over arbitrary streams
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== ticketdesk Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	// API
	for {
		fmt.Fprintf(w.out, "API base URL [%s]: ", cfg.API.BaseURL)
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if raw == "" {
			break
		}
		if err := validator.ValidateBaseURL(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.API.BaseURL = raw
		break
	}

	fmt.Fprintln(w.out)

	// Storage
	fmt.Fprintln(w.out, "Storage driver options:")
	fmt.Fprintln(w.out, "  file    - JSON document per origin, shared by every tab (default)")
	fmt.Fprintln(w.out, "  sqlite  - SQLite database")
	fmt.Fprintln(w.out, "  memory  - nothing survives a restart")
	fmt.Fprint(w.out, "Storage driver [file]: ")
	driver, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if driver != "" {
		if err := validator.ValidateStorageDriver(driver); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (file)\n", err)
		} else {
			cfg.Storage.Driver = driver
		}
	}

	fmt.Fprintln(w.out)

	// Broadcast
	fmt.Fprint(w.out, "Coordinate tabs through a relay? (y/n) [y]: ")
	useRelay, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if useRelay == "" || strings.ToLower(useRelay) == "y" {
		cfg.Broadcast.Mode = BroadcastRelay

		for {
			fmt.Fprintf(w.out, "Relay URL [%s]: ", cfg.Broadcast.RelayURL)
			raw, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if raw == "" {
				break
			}
			if err := validator.ValidateRelayURL(raw); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Broadcast.RelayURL = raw
			break
		}

		for {
			fmt.Fprint(w.out, "Relay secret (press Enter to generate one): ")
			secret, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if secret == "" {
				secret, err = GenerateSecret()
				if err != nil {
					return nil, err
				}
				fmt.Fprintln(w.out, "Generated a new relay secret")
			}
			if err := validator.ValidateSecret(secret); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Broadcast.Secret = secret
			cfg.Relay.SharedSecret = secret
			break
		}
	} else {
		cfg.Broadcast.Mode = BroadcastLocal
	}

	fmt.Fprintln(w.out)

	// Session
	fmt.Fprintf(w.out, "Inactivity timeout in minutes [%d]: ", cfg.Session.InactivityTimeout/60)
	minutes, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if minutes != "" {
		n, convErr := strconv.Atoi(minutes)
		if convErr == nil {
			convErr = validator.ValidateInactivityTimeout(n * 60)
		}
		if convErr != nil {
			fmt.Fprintf(w.out, "Warning: invalid timeout %q, using default (15)\n", minutes)
		} else {
			cfg.Session.InactivityTimeout = n * 60
		}
	}

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// GenerateSecret returns 32 random bytes hex encoded
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
