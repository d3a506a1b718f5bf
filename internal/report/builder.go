package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/resume"
)

// namespace keys report identifiers so the same text always yields the same id.
var namespace = uuid.MustParse("5f0c0f5e-8f4e-4e0b-9a43-3d0f6b1d2a77")

type Analyzer interface {
	Analyze(ctx context.Context, section, content string) *ai.Result
}

type Recorder interface {
	ObserveReport(scoredSections int, overall float64)
}

// Builder segments résumé text and scores every section.
type Builder struct {
	analyzer Analyzer
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

type Option func(*Builder)

func WithRecorder(recorder Recorder) Option {
	return func(b *Builder) {
		b.recorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBuilder(analyzer Analyzer, l *zap.Logger, opts ...Option) (*Builder, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}

	if l == nil {
		l = zap.NewNop()
	}

	b := &Builder{
		analyzer: analyzer,
		logger:   l,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// ID returns the deterministic report identifier of raw text.
func ID(raw string) string {
	return uuid.NewSHA1(namespace, []byte(raw)).String()
}

// Build never fails: sections the analyzer could not score carry degraded
// results, and sentinel sections are returned as segmented.
func (b *Builder) Build(ctx context.Context, raw, source string) *resume.Report {
	report := &resume.Report{
		ID:        ID(raw),
		CreatedAt: b.now().UTC(),
		Source:    source,
		Sections:  resume.Segment(raw),
	}

	log := logger.WithReport(b.logger, report.ID, source)
	log.Info("segmented resume",
		zap.Int("sections", len(report.Sections)),
		zap.Strings("names", resume.OrderedNames(report.Sections)),
	)

	for _, name := range resume.OrderedNames(report.Sections) {
		if resume.IsSentinel(name) {
			log.Info("skipping placeholder section", zap.String("section", name))
			continue
		}

		section := report.Sections[name]
		result := b.analyzer.Analyze(ctx, name, section.Content)
		if result == nil {
			continue
		}

		section.Score = result.Score
		section.Suggestions = result.Suggestions
		section.Highlights = result.Highlights
	}

	overall := report.UpdateOverallScore()

	if b.recorder != nil {
		b.recorder.ObserveReport(report.ScoredCount(), overall)
	}

	log.Info("report built",
		zap.Float64("overall_score", overall),
		zap.Int("scored_sections", report.ScoredCount()),
	)

	return report
}
