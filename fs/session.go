package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"danyak/types"

	"github.com/pkg/errors"
)

// FileSessionStorage keeps the signed-in session in a json file readable
// only by the current user.
type FileSessionStorage struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStorage(path string) *FileSessionStorage {
	return &FileSessionStorage{path: path}
}

func (f *FileSessionStorage) Load() (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bytes, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error reading session file")
	}

	var session types.Session
	err = json.Unmarshal(bytes, &session)
	if err != nil {
		return nil, errors.Wrap(err, "error unmarshalling session file")
	}

	if session.AccessToken == "" {
		return nil, nil
	}

	return &session, nil
}

func (f *FileSessionStorage) Save(session *types.Session) error {
	if session == nil {
		return f.Clear()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bytes, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshalling session")
	}

	// write then rename so a crash never leaves half a file behind
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return errors.Wrap(err, "error creating session file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "error setting session file mode")
	}
	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		return errors.Wrap(err, "error writing session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "error writing session file")
	}

	return errors.Wrap(os.Rename(tmp.Name(), f.path), "error replacing session file")
}

func (f *FileSessionStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "error removing session file")
	}
	return nil
}
