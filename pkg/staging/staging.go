// Package staging prepares the isolated working directory a job runs out of:
// a collision-avoided directory under the shared filesystem, a reloadable
// descriptor of the work, and optionally a tarball of code dependencies.
package staging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/task"
)

// Stager allocates staging directories under Root.
type Stager struct {
	Root string
	Log  *logging.Logger

	// nameMax overrides the filesystem's maximum name length in tests.
	nameMax int
}

// NewStager creates a stager rooted at the shared temp directory.
func NewStager(root string, log *logging.Logger) *Stager {
	return &Stager{Root: root, Log: log}
}

// Stage prepares the working directory for one submission attempt: creates
// it, writes the job descriptor, and bundles declared code modules. Any
// failure aborts before submission; no job id is ever produced from a
// half-staged directory.
func (s *Stager) Stage(d *task.Descriptor) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating staging token: %w", err)
	}

	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return "", fmt.Errorf("creating staging root %s: %w", s.Root, err)
	}

	name := DirName(d, token, s.maxNameLen())
	dir := filepath.Join(s.Root, name)

	s.Log.Info("Staging directory", map[string]interface{}{"dir": dir})
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("creating staging dir %s: %w", dir, err)
	}

	if err := WriteDescriptor(dir, d); err != nil {
		return "", err
	}

	if d.Staging.BundleCode {
		s.Log.Debug("Bundling code modules", map[string]interface{}{"modules": d.Staging.Modules})
		if err := BundleModules(dir, d.Staging.Modules); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// DirName builds the directory name for a task + random token, truncated
// deterministically to the filesystem's maximum name length. Equal task and
// token always yield the same truncated name.
func DirName(d *task.Descriptor, token string, nameMax int) string {
	name := d.Fingerprint()[:16] + "-" + sanitize(d.JobName()) + "-" + token
	if len(name) > nameMax {
		name = name[:nameMax]
	}
	return name
}

// Remove deletes a staging directory after the job is terminal. Kept behind
// configuration because the directory is often the only debugging artifact.
func (s *Stager) Remove(dir string) error {
	if dir == "" || dir == "/" {
		return fmt.Errorf("refusing to remove %q", dir)
	}
	s.Log.Info("Removing staging directory", map[string]interface{}{"dir": dir})
	return os.RemoveAll(dir)
}

// maxNameLen asks the filesystem holding Root for its name length limit.
func (s *Stager) maxNameLen() int {
	if s.nameMax > 0 {
		return s.nameMax
	}
	var st unix.Statfs_t
	if err := unix.Statfs(s.Root, &st); err != nil || st.Namelen <= 0 {
		return 255
	}
	return int(st.Namelen)
}

func randomToken() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// sanitize keeps directory names shell- and filesystem-safe.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
