package collection

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/core"
	"pkt.systems/threadpager/schema"
)

// Snapshot is the persisted state of one stream.
type Snapshot struct {
	Info    schema.StreamInfo `json:"info"`
	Entries []schema.Entry    `json:"entries"`
}

// Publisher receives collection changes.
type Publisher interface {
	OnCollection(stream schema.StreamID, entries []schema.Entry)
	OnStreamInfo(info schema.StreamInfo)
}

// Store persists per-stream entry collections to disk and publishes every
// change. Reads are served from memory after the first load.
type Store struct {
	mu    sync.Mutex
	dir   string
	log   pslog.Logger
	pub   Publisher
	cache map[schema.StreamID]Snapshot
}

// NewStore constructs a collection store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil, nil)
}

// NewStoreWithLogger constructs a collection store with logging and an
// optional change publisher.
func NewStoreWithLogger(dir string, logger pslog.Logger, pub Publisher) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger, pub: pub, cache: make(map[schema.StreamID]Snapshot)}, nil
}

// Load returns the snapshot of stream, reading it from disk on first use.
func (s *Store) Load(stream schema.StreamID) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok, err := s.loadLocked(stream)
	return cloneSnapshot(snap), ok, err
}

func (s *Store) loadLocked(stream schema.StreamID) (Snapshot, bool, error) {
	if snap, ok := s.cache[stream]; ok {
		return snap, true, nil
	}
	data, err := os.ReadFile(s.pathForStream(stream))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("collection load miss", "stream", stream)
			}
			return Snapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("collection load failed", "stream", stream, "err", err)
		}
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		if s.log != nil {
			s.log.Warn("collection load failed", "stream", stream, "err", err)
		}
		return Snapshot{}, false, err
	}
	s.cache[stream] = snap
	if s.log != nil {
		s.log.Debug("collection load ok", "stream", stream, "entries", len(snap.Entries))
	}
	return snap, true, nil
}

// Save replaces the snapshot of stream and publishes it.
func (s *Store) Save(stream schema.StreamID, snap Snapshot) error {
	snap = cloneSnapshot(snap)
	snap.Info.ID = stream
	snap.Entries = core.SortEntries(snap.Entries)
	s.mu.Lock()
	err := s.saveLocked(stream, snap)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(snap, true)
	return nil
}

// Merge upserts fetched or locally created entries into stream. Incoming
// entries replace stored ones with the same ID. It returns how many entries
// were new.
func (s *Store) Merge(stream schema.StreamID, entries []schema.Entry) (int, error) {
	s.mu.Lock()
	snap, _, err := s.loadLocked(stream)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	pos := make(map[schema.EntryID]int, len(snap.Entries))
	merged := append([]schema.Entry(nil), snap.Entries...)
	for i, e := range merged {
		pos[e.ID] = i
	}
	added := 0
	for _, e := range entries {
		if err := schema.ValidateEntry(e); err != nil {
			if s.log != nil {
				s.log.Warn("collection entry rejected", "stream", stream, "err", err)
			}
			continue
		}
		e.Stream = stream
		if idx, ok := pos[e.ID]; ok {
			merged[idx] = e
			continue
		}
		pos[e.ID] = len(merged)
		merged = append(merged, e)
		added++
	}
	snap.Info.ID = stream
	snap.Entries = core.SortEntries(merged)
	err = s.saveLocked(stream, snap)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if s.log != nil {
		s.log.Trace("collection merge ok", "stream", stream, "incoming", len(entries), "added", added)
	}
	s.publish(snap, false)
	return added, nil
}

// Remove deletes entries from stream.
func (s *Store) Remove(stream schema.StreamID, ids ...schema.EntryID) error {
	drop := make(map[schema.EntryID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	snap, ok, err := s.loadLocked(stream)
	if err != nil || !ok {
		s.mu.Unlock()
		return err
	}
	kept := make([]schema.Entry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if _, gone := drop[e.ID]; !gone {
			kept = append(kept, e)
		}
	}
	snap.Entries = kept
	err = s.saveLocked(stream, snap)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(snap, false)
	return nil
}

// SetInfo replaces the metadata of a stream and publishes it.
func (s *Store) SetInfo(info schema.StreamInfo) error {
	s.mu.Lock()
	snap, _, err := s.loadLocked(info.ID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap.Info = info
	err = s.saveLocked(info.ID, snap)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.pub != nil {
		s.pub.OnStreamInfo(info)
	}
	return nil
}

// Streams lists the metadata of every persisted stream, ordered by ID.
func (s *Store) Streams() ([]schema.StreamInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[schema.StreamID]struct{}, len(matches))
	out := make([]schema.StreamInfo, 0, len(matches))
	for id, snap := range s.cache {
		seen[id] = struct{}{}
		out = append(out, snap.Info)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			if s.log != nil {
				s.log.Warn("collection list skipped", "path", path, "err", err)
			}
			continue
		}
		if _, ok := seen[snap.Info.ID]; ok || snap.Info.ID == "" {
			continue
		}
		seen[snap.Info.ID] = struct{}{}
		out = append(out, snap.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) publish(snap Snapshot, withInfo bool) {
	if s.pub == nil {
		return
	}
	if withInfo {
		s.pub.OnStreamInfo(snap.Info)
	}
	s.pub.OnCollection(snap.Info.ID, append([]schema.Entry(nil), snap.Entries...))
}

func (s *Store) saveLocked(stream schema.StreamID, snap Snapshot) error {
	path := s.pathForStream(stream)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		if s.log != nil {
			s.log.Warn("collection save failed", "stream", stream, "err", err)
		}
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		if s.log != nil {
			s.log.Warn("collection save failed", "stream", stream, "err", err)
		}
		return err
	}
	s.cache[stream] = snap
	if s.log != nil {
		s.log.Trace("collection save ok", "stream", stream, "entries", len(snap.Entries))
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "stream-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) pathForStream(stream schema.StreamID) string {
	name := sanitize(string(stream))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

func cloneSnapshot(snap Snapshot) Snapshot {
	snap.Entries = append([]schema.Entry(nil), snap.Entries...)
	return snap
}
