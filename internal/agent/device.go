package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DeviceFileName is the state file holding the device identifier.
const DeviceFileName = "device.yaml"

type deviceState struct {
	DeviceID  string    `yaml:"device_id"`
	CreatedAt time.Time `yaml:"created_at"`
}

// DeviceStore persists the per-installation device identifier.
type DeviceStore struct {
	dir   string
	newID func() string
	now   func() time.Time
}

// NewDeviceStore returns a store rooted at dir. Nil generators default to
// random UUIDs and the system clock.
func NewDeviceStore(dir string, newID func() string, now func() time.Time) *DeviceStore {
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	if now == nil {
		now = time.Now
	}
	return &DeviceStore{dir: dir, newID: newID, now: now}
}

// Path returns the state file location.
func (s *DeviceStore) Path() string {
	return filepath.Join(s.dir, DeviceFileName)
}

// LoadOrCreate returns the stored device id, generating and persisting a new
// one on first use.
func (s *DeviceStore) LoadOrCreate() (string, error) {
	raw, err := os.ReadFile(s.Path())
	switch {
	case err == nil:
		var state deviceState
		if err := yaml.Unmarshal(raw, &state); err != nil {
			return "", fmt.Errorf("decode device state %s: %w", s.Path(), err)
		}
		if id := strings.TrimSpace(state.DeviceID); id != "" {
			return id, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read device state: %w", err)
	}

	state := deviceState{DeviceID: s.newID(), CreatedAt: s.now().UTC()}
	if err := s.write(state); err != nil {
		return "", err
	}
	return state.DeviceID, nil
}

func (s *DeviceStore) write(state deviceState) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	encoded, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode device state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, DeviceFileName+".*")
	if err != nil {
		return fmt.Errorf("create device state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("write device state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close device state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("install device state: %w", err)
	}
	return nil
}
