package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Artifact names written into a store location. Always written and read together.
const (
	IndexFile = "index.bin"
	TextsFile = "texts.json"
)

// pendingSuffix marks the next pair while Persist moves it into place.
const pendingSuffix = ".next"

// errNoArtifacts means the location holds no persisted pair yet.
var errNoArtifacts = errors.New("no persisted artifacts")

// Store pairs a FlatIndex with the ordered list of texts it was built from.
// Invariant: len(texts) == index.Count(), and vector i belongs to texts[i].
type Store struct {
	mu     sync.RWMutex
	dim    int
	dir    string // empty for transient stores
	index  *FlatIndex
	texts  []string
	seen   map[string]struct{}
	synced stamp // artifacts the in-memory state was last loaded from or written to
	logger *zap.Logger
}

// NewTransient creates an in-memory store with no durable location.
func NewTransient(dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive, got %d", domain.ErrConfiguration, dim)
	}
	return newStore(dim, "", zap.NewNop()), nil
}

// Open creates a store bound to dir and loads any persisted state from it.
// Missing, partial or unreadable artifacts never fail construction:
// the store starts empty and the problem is logged.
func Open(dir string, dim int, logger *zap.Logger) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive, got %d", domain.ErrConfiguration, dim)
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: store path is required", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := newStore(dim, dir, logger)
	s.load()
	return s, nil
}

func newStore(dim int, dir string, logger *zap.Logger) *Store {
	return &Store{
		dim:    dim,
		dir:    dir,
		index:  NewFlatIndex(dim),
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Dimension returns the vector length accepted by the store.
func (s *Store) Dimension() int { return s.dim }

// Location returns the durable directory, empty for transient stores.
func (s *Store) Location() string { return s.dir }

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Texts returns a copy of the stored texts in insertion order.
func (s *Store) Texts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// Contains reports whether text is already stored (exact match).
func (s *Store) Contains(text string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[text]
	return ok
}

// Add appends texts and their vectors in the same order.
// Nothing is added if any argument is invalid.
func (s *Store) Add(texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("%w: %d texts, %d vectors", domain.ErrLengthMismatch, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("%w: vector %d has %d dims, store has %d",
				domain.ErrVectorDimMismatch, i, len(v), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Add(vectors); err != nil {
		return fmt.Errorf("index add: %w", err)
	}
	s.texts = append(s.texts, texts...)
	for _, t := range texts {
		s.seen[t] = struct{}{}
	}
	return nil
}

// Search returns up to k texts closest to query, nearest first.
func (s *Store) Search(query []float32, k int) ([]string, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dims, store has %d",
			domain.ErrVectorDimMismatch, len(query), s.dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.texts[h.Pos])
	}
	return out, nil
}

// Clear drops all entries. Persisted artifacts are left untouched until the next Persist.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Persist writes the index and the text list to the store location,
// replacing previous artifacts. No-op for transient stores.
//
// Both artifacts are first written as a pending pair, then renamed into place
// index first. A crash between the two renames leaves the new index next to a
// pending text list, which readers pick up in place of the old one.
func (s *Store) Persist() error {
	if s.dir == "" {
		return nil
	}

	s.mu.RLock()
	indexData, err := s.index.MarshalBinary()
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("marshal index: %w", err)
	}
	textsData, err := json.Marshal(s.texts)
	count := len(s.texts)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal texts: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := writeAtomic(s.dir, IndexFile+pendingSuffix, indexData); err != nil {
		return err
	}
	if err := writeAtomic(s.dir, TextsFile+pendingSuffix, textsData); err != nil {
		return err
	}
	for _, name := range []string{IndexFile, TextsFile} {
		if err := os.Rename(s.path(name+pendingSuffix), s.path(name)); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}

	st, err := statPair(s.path(IndexFile), s.path(TextsFile))
	if err != nil {
		return fmt.Errorf("stat persisted store: %w", err)
	}
	s.mu.Lock()
	s.synced = st
	s.mu.Unlock()

	s.logger.Debug("Vector store persisted", zap.String("path", s.dir), zap.Int("entries", count))
	return nil
}

// Reload replaces in-memory state with the persisted artifacts when another
// writer has changed them since this store last loaded or wrote them. Call it
// while holding the location lock, before reading state that will be written back.
// Artifacts that cannot be decoded leave the current state in place and are reported.
func (s *Store) Reload() error {
	if s.dir == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if snap.stamp.equal(s.synced) {
		return nil
	}
	switch {
	case errors.Is(err, errNoArtifacts):
		s.reset()
		s.synced = snap.stamp
		s.logger.Info("Persisted vector store removed, cleared", zap.String("path", s.dir))
		return nil
	case err != nil:
		s.synced = snap.stamp
		return fmt.Errorf("reload %s: %w", s.dir, err)
	}

	before := len(s.texts)
	s.apply(snap)
	s.logger.Info("Reloaded vector store",
		zap.String("path", s.dir),
		zap.Int("entries_before", before),
		zap.Int("entries", len(s.texts)),
	)
	return nil
}

// Check reports whether the store location can be read. A location that does
// not exist yet is fine: the first Persist creates it.
func (s *Store) Check() error {
	if s.dir == "" {
		return nil
	}
	info, err := os.Stat(s.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat store dir: %w", err)
	case !info.IsDir():
		return fmt.Errorf("store path %s is not a directory", s.dir)
	}
	if _, err := os.ReadDir(s.dir); err != nil {
		return fmt.Errorf("read store dir: %w", err)
	}
	return nil
}

// load replaces in-memory state with persisted artifacts when both are present
// and consistent. Any problem leaves the store empty and is logged.
func (s *Store) load() {
	snap, err := s.read()
	s.synced = snap.stamp
	switch {
	case errors.Is(err, errNoArtifacts):
		s.logger.Info("No persisted vector store, starting empty", zap.String("path", s.dir))
		return
	case err != nil:
		s.logger.Warn("Unusable persisted vector store, starting empty", zap.String("path", s.dir), zap.Error(err))
		return
	}
	s.apply(snap)
	s.logger.Info("Loaded vector store", zap.String("path", s.dir), zap.Int("entries", len(s.texts)))
}

// snapshot is a decoded artifact pair.
type snapshot struct {
	index *FlatIndex
	texts []string
	stamp stamp
}

// read decodes the artifact pair. The stamp is filled whenever the files
// could be examined, even if decoding fails.
func (s *Store) read() (snap snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap.index, snap.texts = nil, nil
			err = fmt.Errorf("decode persisted store: %v", r)
		}
	}()

	indexPath, textsPath := s.path(IndexFile), s.path(TextsFile)
	// texts.json.next without index.bin.next: Persist stopped between its renames.
	if fileExists(s.path(TextsFile+pendingSuffix)) && !fileExists(s.path(IndexFile+pendingSuffix)) {
		textsPath = s.path(TextsFile + pendingSuffix)
	}

	indexData, indexErr := os.ReadFile(filepath.Clean(indexPath))
	textsData, textsErr := os.ReadFile(filepath.Clean(textsPath))
	snap.stamp, _ = statPair(indexPath, textsPath)

	switch {
	case errors.Is(indexErr, fs.ErrNotExist) && errors.Is(textsErr, fs.ErrNotExist):
		return snap, errNoArtifacts
	case indexErr != nil || textsErr != nil:
		return snap, fmt.Errorf("incomplete artifacts: index: %v, texts: %v", indexErr, textsErr)
	}

	idx := &FlatIndex{}
	if err := idx.UnmarshalBinary(indexData); err != nil {
		return snap, fmt.Errorf("decode index: %w", err)
	}
	var texts []string
	if err := json.Unmarshal(textsData, &texts); err != nil {
		return snap, fmt.Errorf("decode texts: %w", err)
	}
	if idx.Dim() != s.dim {
		return snap, fmt.Errorf("index dimension %d, configured %d", idx.Dim(), s.dim)
	}
	if idx.Count() != len(texts) {
		return snap, fmt.Errorf("index has %d vectors, text list has %d entries", idx.Count(), len(texts))
	}

	snap.index, snap.texts = idx, texts
	return snap, nil
}

// apply installs a decoded snapshot. Callers hold s.mu or own s exclusively.
func (s *Store) apply(snap snapshot) {
	s.index = snap.index
	s.texts = snap.texts
	s.seen = make(map[string]struct{}, len(snap.texts))
	for _, t := range snap.texts {
		s.seen[t] = struct{}{}
	}
	s.synced = snap.stamp
}

// reset empties the store. Callers hold s.mu.
func (s *Store) reset() {
	s.index.Reset()
	s.texts = nil
	s.seen = make(map[string]struct{})
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// stamp identifies one version of the artifact pair on disk.
type stamp struct {
	index, texts os.FileInfo
}

func statPair(indexPath, textsPath string) (stamp, error) {
	var st stamp
	var err1, err2 error
	st.index, err1 = os.Stat(indexPath)
	st.texts, err2 = os.Stat(textsPath)
	return st, errors.Join(err1, err2)
}

func (a stamp) equal(b stamp) bool {
	return sameFile(a.index, b.index) && sameFile(a.texts, b.texts)
}

// sameFile treats two missing files as equal. Every Persist renames a new
// file into place, so a rewrite changes identity even if size and mtime match.
func sameFile(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
