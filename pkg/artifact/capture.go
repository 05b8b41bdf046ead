// Package artifact turns a finished browser download into a durably named file.
//
// The downloaded file is renamed inside its directory to
// <prefix>_<YYYYMMDD_HHMMSS>.<ext>, where the timestamp is the wall-clock time
// of capture. Capture assumes a single writer: the download directory must be
// dedicated to one in-flight run.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/winona/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("artifact")
	if err != nil {
		debugLog.Warnf("Failed to initialize artifact logger, using stderr fallback: %v", err)
	}
}

var (
	// ErrNoArtifactProduced means the download directory held no candidate file
	ErrNoArtifactProduced = errors.New("no artifact produced")

	// ErrRenameFailed means the candidate could not be moved to its canonical name
	ErrRenameFailed = errors.New("rename failed")
)

const (
	// TimestampLayout formats the capture time inside canonical names
	TimestampLayout = "20060102_150405"

	DefaultPrefix    = "orders"
	DefaultExtension = "xls"
)

// CanonicalPattern matches names produced with the default prefix and extension.
var CanonicalPattern = canonicalPattern(DefaultPrefix, DefaultExtension)

func canonicalPattern(prefix, ext string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_\d{8}_\d{6}\.` + regexp.QuoteMeta(ext) + `$`)
}

// CanonicalName returns <prefix>_<timestamp>.<ext> for t.
func CanonicalName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Capturer renames downloaded files in one watched directory.
type Capturer struct {
	Dir       string
	Prefix    string
	Extension string
	Now       Clock

	ignore []glob.Glob
}

// NewCapturer creates a capturer for dir, resolved to an absolute path. Entries
// whose base name matches any of ignorePatterns are never selected, and neither
// are files that already carry a canonical name.
func NewCapturer(dir string, ignorePatterns []string) (*Capturer, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}

	c := &Capturer{
		Dir:       dir,
		Prefix:    DefaultPrefix,
		Extension: DefaultExtension,
		Now:       time.Now,
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern '%s': %w", pattern, err)
		}
		c.ignore = append(c.ignore, g)
	}

	return c, nil
}

// CaptureLatest renames the newest file in dir to its canonical name using now
// for the timestamp. It returns the new path.
func CaptureLatest(dir string, now Clock) (string, error) {
	c, err := NewCapturer(dir, nil)
	if err != nil {
		return "", err
	}
	if now != nil {
		c.Now = now
	}
	return c.CaptureLatest()
}

// CaptureLatest renames the newest candidate in the watched directory.
// A directory without candidates yields ErrNoArtifactProduced and changes nothing.
func (c *Capturer) CaptureLatest() (string, error) {
	latest, err := c.Latest()
	if err != nil {
		return "", err
	}
	return c.Capture(latest)
}

// Latest returns the path of the newest candidate without touching it.
// Ties on timestamp resolve to the lexicographically largest name. Artifacts
// captured by earlier runs are not candidates.
func (c *Capturer) Latest() (string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: directory %s does not exist", ErrNoArtifactProduced, c.Dir)
		}
		return "", fmt.Errorf("failed to list download directory: %w", err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var candidates []candidate
	captured := canonicalPattern(c.prefix(), c.extension())

	for _, entry := range entries {
		if !entry.Type().IsRegular() || c.ignored(entry.Name()) || captured.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat
			continue
		}
		candidates = append(candidates, candidate{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no new file in %s", ErrNoArtifactProduced, c.Dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].modTime.After(candidates[j].modTime)
		}
		return candidates[i].name > candidates[j].name
	})

	return filepath.Join(c.Dir, candidates[0].name), nil
}

// Capture renames path, which must live in the watched directory's filesystem,
// to its canonical name next to it. An existing file with the canonical name is
// never overwritten.
func (c *Capturer) Capture(path string) (string, error) {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenameFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoArtifactProduced, path)
		}
		return "", fmt.Errorf("%w: %v", ErrRenameFailed, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrNoArtifactProduced, path)
	}

	target := filepath.Join(filepath.Dir(path), CanonicalName(c.prefix(), c.extension(), now()))
	if target == path {
		return target, nil
	}
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %s already exists", ErrRenameFailed, target)
	}

	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenameFailed, err)
	}

	debugLog.Infof("Captured %s as %s (%d bytes)", filepath.Base(path), filepath.Base(target), info.Size())
	return target, nil
}

func (c *Capturer) ignored(name string) bool {
	for _, g := range c.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (c *Capturer) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c *Capturer) extension() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}
