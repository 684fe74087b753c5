// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package sideband

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"zb.256lights.llc/sideband/envelope"
	"zombiezen.com/go/log"
	"zombiezen.com/go/xcontext"
)

// LogSummary is the content of one sideband log found by [Scan].
type LogSummary struct {
	// LogPath is the absolute path of the log file.
	LogPath string
	// Status is the result of checking the log's header.
	Status envelope.Status
	// Paths is the list of paths recovered from the log.
	Paths []string
}

// ScanOptions is the set of optional parameters to [Scan].
type ScanOptions struct {
	// Concurrency is the maximum number of logs to read concurrently.
	// Values less than 1 are treated as if 1 was given.
	Concurrency int
	// Cache is an optional cache of previously verified logs.
	Cache Cache
}

// CacheKey identifies the content of a finished sideband log.
type CacheKey struct {
	ID       uuid.UUID
	Checksum uint64
	Length   uint64
}

func cacheKeyFromHeader(h *envelope.Header) CacheKey {
	return CacheKey{ID: h.ID, Checksum: h.Checksum, Length: h.Length}
}

// A Cache stores the paths of sideband logs whose checksum has been verified.
// Methods on a Cache must be safe to call from multiple goroutines concurrently.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (paths []string, found bool, err error)
	Put(ctx context.Context, key CacheKey, paths []string) error
}

// Scan reads every sideband log under root,
// returning summaries sorted by log path.
// Logs that are deleted while Scan is running are skipped.
// Damaged logs are summarized with whatever paths could be recovered.
func Scan(ctx context.Context, root string, opts *ScanOptions) ([]*LogSummary, error) {
	logPaths, err := FindAll(root)
	if err != nil {
		return nil, err
	}
	concurrency := 1
	var cache Cache
	if opts != nil {
		concurrency = max(concurrency, opts.Concurrency)
		cache = opts.Cache
	}
	log.Debugf(ctx, "Scanning %d sideband logs in %s...", len(logPaths), root)

	results := make([]*LogSummary, len(logPaths))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)
	for i, logPath := range logPaths {
		grp.Go(func() error {
			var err error
			results[i], err = scanLog(grpCtx, logPath, cache)
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	results = slices.DeleteFunc(results, func(summary *LogSummary) bool {
		return summary == nil
	})
	slices.SortFunc(results, func(a, b *LogSummary) int {
		return strings.Compare(a.LogPath, b.LogPath)
	})
	return results, nil
}

func scanLog(ctx context.Context, logPath string, cache Cache) (*LogSummary, error) {
	r, err := Open(logPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf(ctx, "%s removed during scan", logPath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	closer := xcontext.CloseWhenDone(ctx, r)
	defer closer.Close()

	if _, err := r.ReadHeader(true); err != nil {
		return nil, err
	}
	summary := &LogSummary{
		LogPath: logPath,
		Status:  r.Header().Status,
	}
	if cache != nil && r.Header().Intact() {
		key := cacheKeyFromHeader(&r.Header().Header)
		paths, found, err := cache.Get(ctx, key)
		if err != nil {
			log.Warnf(ctx, "Sideband cache lookup for %s: %v", logPath, err)
		} else if found {
			log.Debugf(ctx, "Using cached entries for %s", logPath)
			summary.Paths = paths
			return summary, nil
		}
	}

	// Verify the payload before trusting it enough to cache.
	if _, err := r.ReadHeader(false); err != nil {
		return nil, err
	}
	summary.Status = r.Header().Status
	summary.Paths = slices.Collect(r.ReadAll())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if summary.Status != envelope.OK {
		log.Debugf(ctx, "%s is compromised (%v). Recovered %d paths.", logPath, summary.Status, len(summary.Paths))
		return summary, nil
	}
	if cache != nil {
		key := cacheKeyFromHeader(&r.Header().Header)
		if err := cache.Put(ctx, key, summary.Paths); err != nil {
			log.Warnf(ctx, "Sideband cache store for %s: %v", logPath, err)
		}
	}
	return summary, nil
}
