package fs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var HomeDanyakDir string
var HomeSessionPath string
var HomeConfigPath string
var HomeLogPath string

// Init resolves the client's home dir: DANYAK_HOME when set, ~/.danyak-dev
// when DANYAK_ENV=development, ~/.danyak otherwise. The dir is created if
// missing.
func Init() error {
	dir := os.Getenv("DANYAK_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "couldn't find home dir")
		}

		if os.Getenv("DANYAK_ENV") == "development" {
			dir = filepath.Join(home, ".danyak-dev")
		} else {
			dir = filepath.Join(home, ".danyak")
		}
	}

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", dir)
	}

	HomeDanyakDir = dir
	HomeSessionPath = filepath.Join(dir, "session.json")
	HomeConfigPath = filepath.Join(dir, "config.yaml")
	HomeLogPath = filepath.Join(dir, "danyak.log")

	return nil
}
