// Package tasks holds the task backends action items are dispatched to.
package tasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
)

const (
	LedgerHeader  = "# Meeting Action Items"
	createdLayout = "2006-01-02 15:04:05"
)

// One lock per absolute ledger path, shared by every MarkdownLedger in the process.
var ledgerLocks sync.Map

// MarkdownLedger appends tasks to a markdown file. Each task is written with
// a single append so concurrent runs never interleave blocks.
type MarkdownLedger struct {
	path string
	now  func() time.Time
}

func NewMarkdownLedger(path string) (*MarkdownLedger, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, err
	}
	return &MarkdownLedger{path: abs, now: time.Now}, nil
}

func (m *MarkdownLedger) Path() string { return m.path }

func (m *MarkdownLedger) Name() string { return "markdown" }

func (m *MarkdownLedger) CreateTask(ctx context.Context, item types.ActionItem) (types.TaskRef, error) {
	if err := ctx.Err(); err != nil {
		return types.TaskRef{}, &mrerrors.DispatchError{Kind: mrerrors.KindUnknown, Backend: m.Name(), Cause: err}
	}

	id := "task-" + uuid.NewString()
	block := fmt.Sprintf("## %s\n- **Owner**: %s\n- **Task**: %s\n- **Context**: \"%s\"\n- **Created**: %s\n\n",
		id, oneLine(item.Owner), oneLine(item.Description), oneLine(item.ContextQuote), m.now().Format(createdLayout))

	mu, _ := ledgerLocks.LoadOrStore(m.path, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	f, created, err := openLedger(m.path)
	if err != nil {
		return types.TaskRef{}, &mrerrors.DispatchError{Kind: mrerrors.KindUnknown, Backend: m.Name(), Cause: err}
	}
	defer f.Close()

	if created {
		block = LedgerHeader + "\n\n" + block
	}
	if _, err := f.WriteString(block); err != nil {
		return types.TaskRef{}, &mrerrors.DispatchError{Kind: mrerrors.KindUnknown, Backend: m.Name(), Cause: err}
	}

	return types.TaskRef{
		ID:    id,
		URL:   "file://" + filepath.ToSlash(m.path) + "#" + id,
		Title: item.Description,
	}, nil
}

// openLedger opens path for appending. created is true only for the caller
// whose O_EXCL create made the file, so exactly one writer adds the header
// even across processes.
func openLedger(path string) (f *os.File, created bool, err error) {
	f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_APPEND|os.O_WRONLY, 0o644)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, false, err
	}
	f, err = os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	return f, false, err
}

// LedgerEntry is one task block read back from a ledger.
type LedgerEntry struct {
	ID      string    `json:"id" yaml:"id"`
	Owner   string    `json:"owner" yaml:"owner"`
	Task    string    `json:"task" yaml:"task"`
	Context string    `json:"context" yaml:"context"`
	Created time.Time `json:"created" yaml:"created"`
}

// ReadLedger parses every task block in the ledger at path.
func ReadLedger(path string) ([]LedgerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		out []LedgerEntry
		cur *LedgerEntry
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if id, ok := strings.CutPrefix(line, "## "); ok {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &LedgerEntry{ID: strings.TrimSpace(id)}
			continue
		}
		if cur == nil {
			continue
		}
		key, val, ok := strings.Cut(strings.TrimPrefix(line, "- "), ": ")
		if !ok {
			continue
		}
		switch strings.Trim(key, "*") {
		case "Owner":
			cur.Owner = val
		case "Task":
			cur.Task = val
		case "Context":
			cur.Context = strings.TrimSuffix(strings.TrimPrefix(val, `"`), `"`)
		case "Created":
			if t, err := time.ParseInLocation(createdLayout, val, time.Local); err == nil {
				cur.Created = t
			}
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, sc.Err()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
