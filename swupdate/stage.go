package swupdate

import (
	"os"
	"path/filepath"
)

// Staged update files, read-only once verification passes.
const (
	metaFilename = "update.json"
	binFilename  = "update.bin"
)

func (u *Updater) metaPath() string {
	return filepath.Join(u.cfg.home, metaFilename)
}

func (u *Updater) binPath() string {
	return filepath.Join(u.cfg.home, binFilename)
}

// writeFileAtomic stages content next to path and renames it into place, so
// a crash mid-write never leaves a half-written live file.
func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Chmod(path, mode)
}

// wipeStage removes any staged update files.
func (u *Updater) wipeStage() {
	if len(u.cfg.home) == 0 {
		return
	}
	for _, p := range []string{u.metaPath(), u.binPath()} {
		os.Chmod(p, 0600)
		os.Remove(p)
	}
}
