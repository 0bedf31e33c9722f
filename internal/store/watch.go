// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const watchSettle = 100 * time.Millisecond

// Watch re-imports matching files under the documents directory as they
// are created or written, until ctx is done. Bursts of events for one file
// are coalesced.
func (s *Store) Watch(ctx context.Context, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, s.documentsDir); err != nil {
		return err
	}
	s.log.Info().Str("dir", s.documentsDir).Str("include", s.include).Msg("watching documents")

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchSettle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						s.log.Warn().Err(err).Str("dir", event.Name).Msg("watching new directory failed")
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			rel, ok := s.matchWatched(event.Name)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(watchSettle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			for rel := range pending {
				doc, err := s.IngestFile(ctx, rel)
				if err != nil {
					fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
					continue
				}
				fmt.Fprintf(w, "indexing %s (%s)\n", rel, doc.ID)
			}
			clear(pending)
		}
	}
}

func (s *Store) matchWatched(path string) (string, bool) {
	rel, err := filepath.Rel(s.documentsDir, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !supported(rel) {
		return "", false
	}
	ok, err := doublestar.Match(s.include, rel)
	return rel, err == nil && ok
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
