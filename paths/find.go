// Package paths locates configuration files that binaries load at startup.
package paths

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Open when no candidate location holds the file.
var ErrNotFound = errors.New("file not found")

// Dirs lists the directories Find looks in, in order: the working
// directory, the directory holding the binary, the user's configuration
// directory and /etc/raknet.
func Dirs() []string {
	dirs := []string{"."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "raknet"))
	}
	return append(dirs, "/etc/raknet")
}

// Find returns the first existing path for fileName, or "" if there is
// none.
//
// For example, for "raknetd.yaml" it may return
// "/home/user/.config/raknet/raknetd.yaml".
func Find(fileName string) string {
	return find(fileName, Dirs())
}

func find(fileName string, dirs []string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, fileName)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			glog.V(1).Infof("paths.Find(%q)=%s", fileName, path)
			return path
		}
	}
	return ""
}

// Open opens the file Find locates.
func Open(fileName string) (*os.File, error) {
	path := Find(fileName)
	if path == "" {
		return nil, errors.Wrapf(ErrNotFound, "%q", fileName)
	}
	return os.Open(path)
}
