package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a knowledge file:
//
//	entries:
//	  - id: "1"
//	    title: Return Policy
//	    category: policies
//	    content: ...
type File struct {
	Entries []*entity.KnowledgeEntry `yaml:"entries"`
}

// LoadFile reads and validates a knowledge file.
func LoadFile(path string) ([]*entity.KnowledgeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse knowledge file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for i, e := range f.Entries {
		if e.ID == "" {
			e.ID = fmt.Sprintf("file-%d", i+1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("knowledge file %s: duplicate id %q", path, e.ID)
		}
		seen[e.ID] = true
		if e.Title == "" || e.Content == "" {
			return nil, fmt.Errorf("knowledge file %s: entry %q needs a title and content", path, e.ID)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("knowledge file %s: entry %q has unknown category %q", path, e.ID, e.Category)
		}
	}
	return f.Entries, nil
}

// Watcher reloads a knowledge file into a Base whenever it changes.
type Watcher struct {
	path     string
	base     *Base
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

func NewWatcher(path string, base *Base, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		base:     base,
		debounce: 200 * time.Millisecond,
		watcher:  fw,
		logger:   logger.With(zap.String("component", "knowledge-watcher"), zap.String("path", path)),
	}, nil
}

// Start watches the file's directory, so editors that replace the file
// by rename are seen too. It returns once watching is set up.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch knowledge dir: %w", err)
	}

	go func() {
		var timer *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				w.reload()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Watcher error", zap.Error(err))
			}
		}
	}()

	w.logger.Info("Knowledge file watching started")
	return nil
}

func (w *Watcher) reload() {
	entries, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("Knowledge reload failed, keeping current articles", zap.Error(err))
		return
	}
	w.base.Replace(entries)
	w.logger.Info("Knowledge file reloaded", zap.Int("entries", len(entries)))
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
