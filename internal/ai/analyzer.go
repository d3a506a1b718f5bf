package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/utils"
)

const defaultMaxLogLength = 200

// Outcomes reported to the Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
	OutcomePanic       = "panic"
)

var (
	emptySectionSuggestions = []string{"该部分内容为空，请添加相关信息"}
	rateLimitedSuggestions  = []string{"服务器繁忙，请稍后再试（速率限制）"}
	unavailableSuggestions  = []string{
		"AI服务暂时无法访问，请检查：",
		"1. 网络连接是否正常",
		"2. API密钥是否正确",
		"3. API服务是否可用",
	}
	internalErrorSuggestions = []string{"分析过程出现错误，请重试"}
)

var extract = Extract

// Result is the analysis of a single résumé section.
type Result struct {
	Score       float64
	Suggestions []string
	Highlights  []string
	Raw         string
}

// Completer sends one system+user prompt pair to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Recorder receives the outcome of every analysis.
type Recorder interface {
	ObserveAnalysis(section, outcome string, elapsed time.Duration)
}

// Analyzer scores résumé sections with a Completer. It never fails: provider
// errors are turned into zero-score results carrying diagnostic suggestions.
type Analyzer struct {
	completer Completer
	logger    *zap.Logger
	recorder  Recorder
	maxLogLen int
}

func NewAnalyzer(completer Completer, logger *zap.Logger, recorder Recorder, maxLogLength int) (*Analyzer, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Analyzer{
		completer: completer,
		logger:    logger,
		recorder:  recorder,
		maxLogLen: maxLogLength,
	}, nil
}

// Analyze scores the content of the named section.
func (a *Analyzer) Analyze(ctx context.Context, section, content string) *Result {
	started := time.Now()
	result, outcome := a.analyze(ctx, section, content)

	if a.recorder != nil {
		a.recorder.ObserveAnalysis(section, outcome, time.Since(started))
	}

	return result
}

func (a *Analyzer) analyze(ctx context.Context, section, content string) (*Result, string) {
	if strings.TrimSpace(content) == "" {
		a.logger.Debug("skipping empty section", zap.String("section", section))
		return degraded(emptySectionSuggestions, ""), OutcomeEmpty
	}

	prompt := BuildPrompt(section, content)

	a.logger.Debug("analysis request",
		zap.String("section", section),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.completer.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		var rateLimited *RateLimitError
		if errors.As(err, &rateLimited) {
			a.logger.Warn("analysis rate limited", zap.String("section", section), zap.Error(err))
			return degraded(rateLimitedSuggestions, err.Error()), OutcomeRateLimited
		}

		a.logger.Warn("analysis request failed", zap.String("section", section), zap.Error(err))
		return degraded(unavailableSuggestions, err.Error()), OutcomeFailed
	}

	a.logger.Debug("analysis response",
		zap.String("section", section),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	result, err := fromReply(raw)
	if err != nil {
		a.logger.Error("parsing analysis failed", zap.String("section", section), zap.Error(err))
		return degraded(internalErrorSuggestions, err.Error()), OutcomePanic
	}

	a.logger.Info("section analyzed",
		zap.String("section", section),
		zap.Float64("score", result.Score),
		zap.Int("suggestions", len(result.Suggestions)),
		zap.Int("highlights", len(result.Highlights)),
	)

	return result, OutcomeOK
}

func fromReply(raw string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("extract analysis: %v", r)
		}
	}()

	extracted := extract(raw)

	return &Result{
		Score:       ClampScore(extracted.Score),
		Suggestions: extracted.Suggestions,
		Highlights:  extracted.Highlights,
		Raw:         raw,
	}, nil
}

func degraded(suggestions []string, raw string) *Result {
	return &Result{
		Score:       0,
		Suggestions: append([]string(nil), suggestions...),
		Highlights:  []string{},
		Raw:         raw,
	}
}
