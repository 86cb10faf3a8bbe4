package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const identityFileName = "identity.json"

type identityRecord struct {
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityFile implements ports.IdentityStore using a JSON file.
type IdentityFile struct {
	dir string
}

// NewIdentityFile creates an IdentityFile stored in dir.
func NewIdentityFile(dir string) *IdentityFile {
	return &IdentityFile{dir: dir}
}

// Load returns the persisted device identifier.
// Returns "" and nil error if no identity file exists.
func (f *IdentityFile) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var rec identityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", err
	}
	return strings.TrimSpace(rec.DeviceID), nil
}

// Save persists the identifier atomically (temp file, then rename).
func (f *IdentityFile) Save(ctx context.Context, deviceID string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(identityRecord{DeviceID: deviceID, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	path := f.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the identity file.
func (f *IdentityFile) Path() string {
	return filepath.Join(f.dir, identityFileName)
}
