// Package gateway counts inference requests and errors in the most recent
// gateway log files.
package gateway

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/parser"
)

const (
	// DefaultPattern matches the daily gateway logs, e.g. openclaw-2025-01-31.log
	DefaultPattern = "openclaw-*.log"

	// DefaultLookback is the number of most recent log files scanned
	DefaultLookback = 3

	defaultWorkers = 4
)

// Aggregator scans gateway logs. The zero value uses SubstringClassifier and
// DefaultPattern.
type Aggregator struct {
	Classifier Classifier
	Pattern    string
	Workers    int
	Log        log.FieldLogger
}

type fileCounts struct {
	inference int
	errors    int
}

// Aggregate scans up to lookback of the newest matching files in fsys.
// Filenames are assumed to sort by date, so the lexicographically greatest
// names are the newest.
//
// A missing directory, or one without matching files, yields a nil summary
// and no error. Files that cannot be read are skipped. The only errors
// returned are ctx cancellation and failures listing the directory itself.
func (a *Aggregator) Aggregate(ctx context.Context, fsys fs.FS, lookback int) (*model.GatewayActivitySummary, error) {
	files, err := a.selectFiles(fsys, lookback)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	classifier := a.Classifier
	if classifier == nil {
		classifier = SubstringClassifier
	}
	workers := a.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	counts := make([]fileCounts, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range files {
		g.Go(func() error {
			c, err := scanFile(gctx, fsys, name, classifier)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger().WithError(err).WithField("file", name).Warn("gateway log: skipping unreadable file")
				return nil
			}
			counts[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &model.GatewayActivitySummary{LogFilesAnalyzed: len(files)}
	for _, c := range counts {
		summary.InferenceRequestCount += c.inference
		summary.ErrorCount += c.errors
	}

	return summary, nil
}

// selectFiles returns the newest lookback file names matching the pattern
func (a *Aggregator) selectFiles(fsys fs.FS, lookback int) ([]string, error) {
	pattern := a.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := path.Match(pattern, entry.Name()); ok {
			files = append(files, entry.Name())
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if len(files) > lookback {
		files = files[:lookback]
	}

	return files, nil
}

func scanFile(ctx context.Context, fsys fs.FS, name string, classifier Classifier) (fileCounts, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return fileCounts{}, err
	}
	defer f.Close()

	var c fileCounts
	err = parser.ForEachLine(ctx, f, func(line []byte) {
		if !gjson.ValidBytes(line) {
			return
		}
		entry := gjson.ParseBytes(line)
		if !entry.IsObject() {
			return
		}

		e := Entry{Raw: line}
		if msg := entry.Get("msg"); msg.Type == gjson.String {
			e.Msg = msg.Str
		}
		if level := entry.Get("level"); level.Type == gjson.String {
			e.Level = level.Str
		}

		result := classifier.Classify(e)
		if result.Inference {
			c.inference++
		}
		if result.Error {
			c.errors++
		}
	})
	if err != nil {
		return fileCounts{}, err
	}

	return c, nil
}

func (a *Aggregator) logger() log.FieldLogger {
	if a.Log != nil {
		return a.Log
	}
	return log.StandardLogger()
}
