package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	mrerrors "meeting-router-go/internal/errors"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore writes summaries to summary_<timestamp>_<name>.md files in Dir.
// It is the fallback when a channel fails and the channel itself when none
// is configured.
type FileStore struct {
	Dir string
	now func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, now: time.Now}
}

func (f *FileStore) Name() string { return "file" }

// Save writes markdown to a new file and returns its path. Existing files are
// never overwritten. Failures are *mrerrors.FatalIOError.
func (f *FileStore) Save(markdown, suggestedName string) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", &mrerrors.FatalIOError{Op: "mkdir", Path: f.Dir, Cause: err}
	}

	base := "summary_" + f.now().Format("20060102_150405")
	if s := sanitize(suggestedName); s != "" {
		base += "_" + s
	}

	for i := 0; i < 100; i++ {
		name := base + ".md"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.md", base, i)
		}
		path := filepath.Join(f.Dir, name)

		fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &mrerrors.FatalIOError{Op: "create", Path: path, Cause: err}
		}
		if _, err := fh.WriteString(markdown); err != nil {
			fh.Close()
			return "", &mrerrors.FatalIOError{Op: "write", Path: path, Cause: err}
		}
		if err := fh.Close(); err != nil {
			return "", &mrerrors.FatalIOError{Op: "close", Path: path, Cause: err}
		}
		return path, nil
	}
	return "", &mrerrors.FatalIOError{Op: "create", Path: filepath.Join(f.Dir, base+".md"), Cause: os.ErrExist}
}

// Post lets FileStore act as a notification channel.
func (f *FileStore) Post(ctx context.Context, markdown string) error {
	if err := ctx.Err(); err != nil {
		return &mrerrors.NotificationError{Kind: mrerrors.KindUnknown, Channel: f.Name(), Cause: err}
	}
	if _, err := f.Save(markdown, ""); err != nil {
		return &mrerrors.NotificationError{Kind: mrerrors.KindUnknown, Channel: f.Name(), Cause: err}
	}
	return nil
}

func sanitize(name string) string {
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_.")
}
