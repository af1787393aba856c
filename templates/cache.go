package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores analyzed templates so reference files are decoded and
// feature-extracted once
type Cache interface {
	Get(ctx context.Context, key string) (*pronunciation.Template, bool, error)
	Put(ctx context.Context, key string, t *pronunciation.Template) error
	Close() error
}

// record is the stored form of a template
type record struct {
	ID              string        `msgpack:"id"`
	Label           string        `msgpack:"label"`
	Variant         string        `msgpack:"variant"`
	SegmentLabels   []string      `msgpack:"segment_labels,omitempty"`
	Samples         []float64     `msgpack:"samples"`
	SampleRate      int           `msgpack:"sample_rate"`
	Features        [][]float64   `msgpack:"features"`
	Segments        [][2]int      `msgpack:"segments"`
	SegmentFeatures [][][]float64 `msgpack:"segment_features"`
}

func toRecord(t *pronunciation.Template) record {
	r := record{
		ID:            t.ID,
		Label:         t.Label,
		Variant:       t.Variant,
		SegmentLabels: t.SegmentLabels,
		Samples:       t.Signal.Samples,
		SampleRate:    t.Signal.SampleRate,
		Features:      t.Features,
		Segments:      make([][2]int, len(t.Segments)),
	}
	for i, s := range t.Segments {
		r.Segments[i] = [2]int{s.Start, s.End}
	}
	r.SegmentFeatures = make([][][]float64, len(t.SegmentFeatures))
	for i, f := range t.SegmentFeatures {
		r.SegmentFeatures[i] = f
	}
	return r
}

func (r record) template() *pronunciation.Template {
	t := &pronunciation.Template{
		TemplateInfo: pronunciation.TemplateInfo{
			ID:            r.ID,
			Label:         r.Label,
			Variant:       r.Variant,
			SegmentLabels: r.SegmentLabels,
		},
		Signal:          pronunciation.AudioSignal{Samples: r.Samples, SampleRate: r.SampleRate},
		Features:        r.Features,
		Segments:        make([]pronunciation.Segment, len(r.Segments)),
		SegmentFeatures: make([]pronunciation.FeatureMatrix, len(r.SegmentFeatures)),
	}
	for i, s := range r.Segments {
		t.Segments[i] = pronunciation.Segment{Start: s[0], End: s[1]}
	}
	for i, f := range r.SegmentFeatures {
		t.SegmentFeatures[i] = f
	}
	return t
}

// CacheKey identifies a template file version analyzed with a given
// configuration. Any change to the file or to the analysis settings yields
// a new key.
func CacheKey(path string, size, modTime int64, fingerprint string) string {
	return fmt.Sprintf("tmpl:%s:%s:%d:%d", fingerprint, path, size, modTime)
}

// ConfigFingerprint hashes the settings that influence template analysis
func ConfigFingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// BadgerOptions configures the persistent cache
type BadgerOptions struct {
	// Dir holds the database files; required unless InMemory is set
	Dir      string
	InMemory bool
	Logger   logging.Logger
}

// BadgerCache persists analyzed templates in BadgerDB
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens or creates the cache database
func NewBadgerCache(opts BadgerOptions) (*BadgerCache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("template cache directory is required for on-disk mode")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}
	dbOpts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithLogger(badgerLogger{logger: logger.WithFields(logging.Fields{"component": "template_cache"})})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open template cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(_ context.Context, key string) (*pronunciation.Template, bool, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("template cache read failed: %w", err)
	}

	var r record
	if err := msgpack.Unmarshal(val, &r); err != nil {
		return nil, false, fmt.Errorf("corrupt template cache entry %s: %w", key, err)
	}
	return r.template(), true, nil
}

func (c *BadgerCache) Put(_ context.Context, key string, t *pronunciation.Template) error {
	data, err := msgpack.Marshal(toRecord(t))
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger's warnings and errors to the application logger
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger.Error(fmt.Errorf(f, v...), "Badger error")
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}

// MemoryCache keeps templates for the lifetime of the process
type MemoryCache struct {
	mu        sync.RWMutex
	templates map[string]*pronunciation.Template
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{templates: make(map[string]*pronunciation.Template)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*pronunciation.Template, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[key]
	return t, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, t *pronunciation.Template) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[key] = t
	return nil
}

// Len returns the number of cached templates
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

func (c *MemoryCache) Close() error { return nil }
