// Package directory maintains the user credential list backed by an
// append-only text file, cached in memory and refreshed periodically.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidInput indicates a blank required field.
	ErrInvalidInput = errors.New("all fields are required")
	// ErrAlreadyExists indicates the username is taken.
	ErrAlreadyExists = errors.New("username already taken")
	// ErrUnauthorized indicates a username/password mismatch.
	ErrUnauthorized = errors.New("invalid credentials")
)

// Credential is one record of the users file.
type Credential struct {
	Username string
	Password string
	Nickname string
}

// Directory is a read-through cache over the users file. Reads are served
// from an in-memory snapshot that is replaced wholesale on every refresh,
// so readers never observe a partial list.
type Directory struct {
	path     string
	interval time.Duration

	mu    sync.RWMutex
	users []Credential

	// writeMu serializes registrations so the duplicate check, the file
	// append and the refresh happen as one step.
	writeMu sync.Mutex
}

// New creates a Directory over the given users file. Call Refresh to load
// the initial snapshot and Run to keep it refreshed.
func New(path string, interval time.Duration) *Directory {
	return &Directory{
		path:     path,
		interval: interval,
	}
}

// Refresh reloads the users file and swaps in the new snapshot. A missing
// file yields an empty directory.
func (d *Directory) Refresh() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.swap(nil)
			return nil
		}
		return fmt.Errorf("read users file: %w", err)
	}

	var users []Credential
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			log.Printf("directory: skipping malformed line in %s", d.path)
			continue
		}
		users = append(users, Credential{
			Username: parts[0],
			Password: parts[1],
			Nickname: parts[2],
		})
	}
	d.swap(users)
	return nil
}

func (d *Directory) swap(users []Credential) {
	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
}

// Exists reports whether a username is present in the current snapshot.
func (d *Directory) Exists(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// Verify returns the credential matching the username/password pair, or
// ErrUnauthorized when no record matches.
func (d *Directory) Verify(username, password string) (Credential, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Username == username && u.Password == password {
			return u, nil
		}
	}
	return Credential{}, ErrUnauthorized
}

// Count returns the number of cached credentials.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Register appends a new credential to the users file and refreshes the
// snapshot so the new user is visible immediately. Registrations are
// serialized to avoid duplicate usernames from concurrent requests.
func (d *Directory) Register(username, password, nickname string) error {
	if username == "" || password == "" || nickname == "" {
		return ErrInvalidInput
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.Exists(username) {
		return ErrAlreadyExists
	}

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open users file: %w", err)
	}
	_, err = fmt.Fprintf(f, "%s:%s:%s\n", username, password, nickname)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("append user: %w", err)
	}

	return d.Refresh()
}

// Run refreshes the snapshot on the configured interval until ctx is
// cancelled.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(); err != nil {
				log.Printf("directory: refresh failed: %v", err)
			}
		}
	}
}
