package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	"github.com/RyanBlaney/sonido-pronounce/transcode"
	"gopkg.in/yaml.v3"
)

// LabelsFile names the optional per-variant file mapping items to the
// ordered names of their sub-parts
const LabelsFile = "labels.yaml"

// Decoder turns a reference file into PCM
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*transcode.AudioData, error)
	IsSupported(path string) bool
}

// Loader resolves reference recordings stored as
// <root>/<mode>/<variant>/<item>*.<ext> into analyzed templates
type Loader struct {
	root        string
	decoder     Decoder
	evaluator   *pronunciation.Evaluator
	cache       Cache
	fingerprint string
	logger      logging.Logger
}

// NewLoader creates a loader. A nil cache disables caching.
func NewLoader(root string, decoder Decoder, evaluator *pronunciation.Evaluator, cache Cache,
	logger logging.Logger) (*Loader, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	cfg := evaluator.Config()
	fingerprint, err := ConfigFingerprint(struct {
		Preprocess any
		Segmenter  any
		Features   any
	}{cfg.Preprocess, cfg.Segmenter, cfg.Features})
	if err != nil {
		return nil, err
	}

	return &Loader{
		root:        root,
		decoder:     decoder,
		evaluator:   evaluator,
		cache:       cache,
		fingerprint: fingerprint,
		logger:      logger.WithFields(logging.Fields{"component": "template_loader"}),
	}, nil
}

// Resolve returns the templates for an item, ordered by file name. Silent or
// unreadable reference files are skipped with a warning; finding none is a
// NoTemplate error.
func (l *Loader) Resolve(ctx context.Context, mode pronunciation.Mode, variant, item string) ([]*pronunciation.Template, error) {
	if item == "" {
		return nil, pronunciation.NewError(pronunciation.KindInput, "item name is required", nil)
	}

	templates, err := l.load(ctx, mode, variant, item)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, pronunciation.NewError(pronunciation.KindNoTemplate,
			fmt.Sprintf("no reference recordings for %s/%s/%s", mode, variant, item), nil)
	}
	return templates, nil
}

// Warm analyzes and caches every reference file of a variant
func (l *Loader) Warm(ctx context.Context, mode pronunciation.Mode, variant string) (int, error) {
	templates, err := l.load(ctx, mode, variant, "")
	return len(templates), err
}

func (l *Loader) load(ctx context.Context, mode pronunciation.Mode, variant, prefix string) ([]*pronunciation.Template, error) {
	for _, part := range []string{string(mode), variant, prefix} {
		if strings.ContainsAny(part, `/\`) || part == ".." {
			return nil, pronunciation.NewError(pronunciation.KindInput, fmt.Sprintf("invalid path component %q", part), nil)
		}
	}

	dir := filepath.Join(l.root, string(mode), variant)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	labels, err := readLabels(filepath.Join(dir, LabelsFile))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !l.decoder.IsSupported(e.Name()) || (prefix != "" && !matchesItem(e.Name(), prefix)) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var templates []*pronunciation.Template
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, pronunciation.NewError(pronunciation.KindTimeout, "template loading aborted", err)
		}

		item := prefix
		if item == "" {
			item = itemName(name)
		}
		info := pronunciation.TemplateInfo{
			ID:            filepath.ToSlash(filepath.Join(string(mode), variant, name)),
			Label:         item,
			Variant:       variant,
			SegmentLabels: labels[item],
		}

		t, err := l.loadFile(ctx, filepath.Join(dir, name), info)
		if err != nil {
			l.logger.Warn("Skipping reference recording", logging.Fields{
				"template": info.ID,
				"error":    err.Error(),
			})
			continue
		}
		templates = append(templates, t)
	}

	l.logger.Debug("Resolved templates", logging.Fields{
		"mode":      string(mode),
		"variant":   variant,
		"item":      prefix,
		"templates": len(templates),
	})

	return templates, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, info pronunciation.TemplateInfo) (*pronunciation.Template, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	key := CacheKey(info.ID, stat.Size(), stat.ModTime().UnixNano(), l.fingerprint)
	if l.cache != nil {
		t, ok, err := l.cache.Get(ctx, key)
		if err != nil {
			l.logger.Warn("Template cache lookup failed", logging.Fields{"key": key, "error": err.Error()})
		} else if ok {
			// Labels live outside the audio file and may have changed
			labeled := *t
			labeled.SegmentLabels = info.SegmentLabels
			return &labeled, nil
		}
	}

	audio, err := l.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	t, err := l.evaluator.NewTemplate(info, pronunciation.AudioSignal{
		Samples:    audio.PCM,
		SampleRate: audio.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Put(ctx, key, t); err != nil {
			l.logger.Warn("Failed to cache template", logging.Fields{"key": key, "error": err.Error()})
		}
	}
	return t, nil
}

// matchesItem reports whether name is "<item>.<ext>" or "<item>_<suffix>.<ext>"
func matchesItem(name, item string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base == item || strings.HasPrefix(base, item+"_")
}

// itemName strips the extension and any numeric "_N" variant suffix from a file name
func itemName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndexByte(base, '_'); i > 0 {
		if _, err := strconv.Atoi(base[i+1:]); err == nil {
			return base[:i]
		}
	}
	return base
}

func readLabels(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var labels map[string][]string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return labels, nil
}
