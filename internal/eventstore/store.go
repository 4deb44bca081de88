// Package eventstore implements an append-only per-session JSONL event log:
// one file per session, an incremental in-memory cache kept in sync with the
// file on disk, and helpers for the anchor and checkpoint event types.
// Shaped after a write-only audit log's append-only JSONL pattern, extended
// with an incremental read-by-offset cache since callers here need to
// re-read sessions the process itself wrote, not just append to them.
package eventstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcthur/brewva/internal/domain"
)

// Store manages append-only per-session event logs under a root directory.
type Store struct {
	dir string

	mu      sync.Mutex // guards counter + per-session file mutexes map
	monoCtr atomic.Int64
	session map[string]*sessionState
}

type sessionState struct {
	mu sync.Mutex // serializes appends to this session's file

	cacheMu  sync.Mutex // guards the fields below, read by list()
	byteLen  int64
	modTime  time.Time
	rows     []domain.EventRow
	skipped  int
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventstore: create dir: %w", err)
	}
	return &Store{dir: dir, session: make(map[string]*sessionState)}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

func (s *Store) state(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.session[sessionID]
	if !ok {
		st = &sessionState{}
		s.session[sessionID] = st
	}
	return st
}

// nextID produces evt_<unixMilliTimestamp>_<monotonic>, unique even for
// hundreds of appends landing on the same millisecond.
func (s *Store) nextID(ts time.Time) string {
	n := s.monoCtr.Add(1)
	return fmt.Sprintf("evt_%d_%d", ts.UnixMilli(), n)
}

// Append assigns an ID and timestamp (if unset) to row and appends it to the
// session's log file, fsyncing so the write survives a crash.
func (s *Store) Append(sessionID string, row domain.EventRow) (domain.EventRow, error) {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	row.SessionID = sessionID
	row.ID = s.nextID(row.Timestamp)

	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	f, err := os.OpenFile(s.path(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.EventRow{}, fmt.Errorf("eventstore: open: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(row)
	if err != nil {
		return domain.EventRow{}, fmt.Errorf("eventstore: marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return domain.EventRow{}, fmt.Errorf("eventstore: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return domain.EventRow{}, fmt.Errorf("eventstore: fsync: %w", err)
	}
	return row, nil
}

// AppendAnchor wraps Append for the "anchor" event type.
func (s *Store) AppendAnchor(sessionID string, payload any) (domain.EventRow, error) {
	return s.Append(sessionID, domain.EventRow{Type: domain.EventAnchor, Payload: payload})
}

// AppendCheckpoint wraps Append for the "checkpoint" event type.
func (s *Store) AppendCheckpoint(sessionID string, payload any) (domain.EventRow, error) {
	return s.Append(sessionID, domain.EventRow{Type: domain.EventCheckpoint, Payload: payload})
}

// List returns all rows for sessionID, using the incremental cache: if the
// file grew past the cached byte offset, only the new tail is parsed and
// appended; if the file shrank or its mtime predates the cache baseline
// (external truncation/rewrite), the cache is rebuilt from scratch.
func (s *Store) List(sessionID string) ([]domain.EventRow, error) {
	st := s.state(sessionID)
	st.cacheMu.Lock()
	defer st.cacheMu.Unlock()

	info, err := os.Stat(s.path(sessionID))
	if os.IsNotExist(err) {
		st.rows = nil
		st.byteLen = 0
		st.modTime = time.Time{}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventstore: stat: %w", err)
	}

	switch {
	case info.Size() < st.byteLen || info.ModTime().Before(st.modTime):
		if err := s.rescan(st, sessionID); err != nil {
			return nil, err
		}
	case info.Size() > st.byteLen:
		if err := s.appendTail(st, sessionID, info); err != nil {
			return nil, err
		}
	}

	out := make([]domain.EventRow, len(st.rows))
	copy(out, st.rows)
	return out, nil
}

// AnchorsOf / CheckpointsOf filter List() output by event type.
func (s *Store) ListAnchors(sessionID string) ([]domain.EventRow, error) {
	return s.filterType(sessionID, domain.EventAnchor)
}

func (s *Store) ListCheckpoints(sessionID string) ([]domain.EventRow, error) {
	return s.filterType(sessionID, domain.EventCheckpoint)
}

func (s *Store) filterType(sessionID, typ string) ([]domain.EventRow, error) {
	rows, err := s.List(sessionID)
	if err != nil {
		return nil, err
	}
	var out []domain.EventRow
	for _, r := range rows {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out, nil
}

// SkippedCount returns how many malformed lines were skipped while reading
// sessionID's log (not exposed to callers of List).
func (s *Store) SkippedCount(sessionID string) int {
	st := s.state(sessionID)
	st.cacheMu.Lock()
	defer st.cacheMu.Unlock()
	return st.skipped
}

func (s *Store) rescan(st *sessionState, sessionID string) error {
	rows, n, skipped, err := readAll(s.path(sessionID))
	if err != nil {
		return err
	}
	st.rows = rows
	st.byteLen = n
	st.skipped = skipped
	if info, err := os.Stat(s.path(sessionID)); err == nil {
		st.modTime = info.ModTime()
	}
	return nil
}

func (s *Store) appendTail(st *sessionState, sessionID string, info os.FileInfo) error {
	f, err := os.Open(s.path(sessionID))
	if err != nil {
		return fmt.Errorf("eventstore: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(st.byteLen, 0); err != nil {
		return fmt.Errorf("eventstore: seek: %w", err)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var newBytes int64
	for sc.Scan() {
		line := sc.Bytes()
		newBytes += int64(len(line)) + 1 // +1 for the newline
		if len(line) == 0 {
			continue
		}
		var row domain.EventRow
		if err := json.Unmarshal(line, &row); err != nil {
			st.skipped++
			continue
		}
		st.rows = append(st.rows, row)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("eventstore: scan: %w", err)
	}
	st.byteLen += newBytes
	st.modTime = info.ModTime()
	return nil
}

func readAll(path string) (rows []domain.EventRow, byteLen int64, skipped int, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, 0, nil
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("eventstore: open: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		byteLen += int64(len(line)) + 1
		if len(line) == 0 {
			continue
		}
		var row domain.EventRow
		if jsonErr := json.Unmarshal(line, &row); jsonErr != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if scErr := sc.Err(); scErr != nil {
		return nil, 0, 0, fmt.Errorf("eventstore: scan: %w", scErr)
	}
	return rows, byteLen, skipped, nil
}
