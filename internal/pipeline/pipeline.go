// Package pipeline runs one transcript through parsing, extraction, risk
// scoring, task dispatch, summary assembly and notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/extractor"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/metrics"
	"meeting-router-go/internal/notify"
	"meeting-router-go/internal/retry"
	"meeting-router-go/internal/risk"
	"meeting-router-go/internal/segment"
	"meeting-router-go/internal/sentiment"
	"meeting-router-go/internal/summary"
	"meeting-router-go/internal/transcription"
	"meeting-router-go/internal/types"
)

// TaskSink creates one external task per action item.
type TaskSink interface {
	Name() string
	CreateTask(ctx context.Context, item types.ActionItem) (types.TaskRef, error)
}

// NotificationSink delivers the markdown summary.
type NotificationSink interface {
	Name() string
	Post(ctx context.Context, markdown string) error
}

// FallbackStore keeps the summary when notification fails.
type FallbackStore interface {
	Save(markdown, suggestedName string) (string, error)
}

const DefaultThreshold = 0.3

type Config struct {
	Threshold    float64
	Retry        retry.Policy
	ScoreTimeout time.Duration
	Extract      extractor.Options
}

func DefaultConfig() Config {
	return Config{
		Threshold:    DefaultThreshold,
		Retry:        retry.DefaultPolicy(),
		ScoreTimeout: 30 * time.Second,
	}
}

// Deps are the collaborators of a Pipeline. Scorer, Tasks and Notifier may
// be nil; Fallback defaults to a FileStore under ./summaries.
type Deps struct {
	Scorer   sentiment.Scorer
	Tasks    TaskSink
	Notifier NotificationSink
	Fallback FallbackStore
	Summary  *summary.Builder
	Metrics  *metrics.Collector
	Logger   *logger.Logger
}

// Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	cfg       Config
	deps      Deps
	parser    *segment.Parser
	extractor *extractor.Extractor
	detector  *risk.Detector
}

func New(cfg Config, deps Deps) *Pipeline {
	if deps.Fallback == nil {
		deps.Fallback = notify.NewFileStore("summaries")
	}
	if deps.Summary == nil {
		deps.Summary = summary.NewBuilder()
	}
	if deps.Logger == nil {
		deps.Logger = logger.New()
	}
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		parser:    segment.NewParser(),
		extractor: extractor.New(cfg.Extract),
		detector:  risk.New(cfg.ScoreTimeout),
	}
}

// RunFile reads the transcript at path and runs it. An unreadable file
// yields a Failed report.
func (p *Pipeline) RunFile(ctx context.Context, path string) *Report {
	r := p.start(ctx, path)
	text, err := transcription.ReadFile(r.ctx, path)
	if err != nil {
		var fe *mrerrors.FatalIOError
		if !errors.As(err, &fe) {
			err = &mrerrors.FatalIOError{Op: "read", Path: path, Cause: err}
		}
		return r.fail(err)
	}
	return p.run(r, text)
}

// Run processes an already-loaded transcript. source names it in logs,
// the summary and the fallback file name.
func (p *Pipeline) Run(ctx context.Context, source, text string) *Report {
	return p.run(p.start(ctx, source), text)
}

func (p *Pipeline) start(ctx context.Context, source string) *run {
	id := uuid.NewString()
	entry := p.deps.Logger.WithRun(id, source)
	return &run{
		p:   p,
		ctx: logger.IntoContext(ctx, entry),
		log: entry,
		report: &Report{
			RunID:  id,
			Source: source,
			State:  Idle,
		},
	}
}

func (p *Pipeline) run(r *run, text string) *Report {
	var (
		units  []types.DialogueUnit
		result types.ProcessingResult
	)
	r.log.WithField("bytes", len(text)).Info("pipeline run started")

	r.step(Parsing, func() {
		var issues []*mrerrors.ParseError
		units, issues = p.parser.ParseWithIssues(text)
		for _, issue := range issues {
			r.stepError(issue, nil)
		}
		r.log.WithField("units", len(units)).Info("transcript parsed")
	})

	r.step(Extracting, func() {
		result.ActionItems = p.extractor.Extract(units)
		result.Decisions = p.detector.Decisions(text, units)
		r.log.WithFields(logrus.Fields{
			"action_items": len(result.ActionItems),
			"decisions":    len(result.Decisions),
		}).Info("action items extracted")
	})

	r.step(Scoring, func() {
		points, errs := p.detector.DetectWithErrors(r.ctx, text, units, p.cfg.Threshold, p.deps.Scorer)
		result.RiskPoints = points
		for _, err := range errs {
			r.stepError(err, nil)
		}
	})
	p.deps.Metrics.Extracted(len(result.ActionItems), len(result.RiskPoints))

	r.step(Dispatching, func() {
		result.DispatchOutcomes = make([]types.DispatchOutcome, 0, len(result.ActionItems))
		for _, item := range result.ActionItems {
			result.DispatchOutcomes = append(result.DispatchOutcomes, r.dispatch(item))
		}
	})
	// one outcome per item, even if the step above panicked part way
	for i := len(result.DispatchOutcomes); i < len(result.ActionItems); i++ {
		result.DispatchOutcomes = append(result.DispatchOutcomes, types.DispatchOutcome{
			Item:      result.ActionItems[i],
			ErrorKind: mrerrors.KindUnknown,
			Error:     "not dispatched",
		})
	}

	r.report.Result = result.Freeze()

	var md string
	r.step(Summarizing, func() {
		md = p.deps.Summary.Build(r.report.Source, r.report.Result)
	})
	if md == "" {
		md = fmt.Sprintf("# Meeting Summary\n\nSummary could not be rendered for run %s.\n", r.report.RunID)
	}

	var fatal error
	r.step(Notifying, func() {
		fatal = r.notify(md)
	})
	if fatal != nil {
		return r.fail(fatal)
	}

	r.report.Summary = md
	r.transition(Done)
	p.deps.Metrics.RunFinished(string(Done))
	r.log.WithFields(logrus.Fields{
		"action_items":  len(r.report.Result.ActionItems),
		"failed_tasks":  len(r.report.Result.FailedDispatches()),
		"risk_points":   len(r.report.Result.RiskPoints),
		"delivered":     r.report.Delivered,
		"fallback_path": r.report.FallbackPath,
		"step_errors":   len(r.report.StepErrors),
	}).Info("pipeline run finished")
	return r.report
}

func (r *run) dispatch(item types.ActionItem) types.DispatchOutcome {
	out := types.DispatchOutcome{Item: item}
	sink := r.p.deps.Tasks
	if sink == nil {
		out.ErrorKind = mrerrors.KindUnknown
		out.Error = "no task sink configured"
		r.stepError(errors.New(out.Error), &item)
		return out
	}

	ilog := r.log.WithFields(logrus.Fields{"owner": item.Owner, "task": item.Description, "backend": sink.Name()})
	var ref types.TaskRef
	res, err := retry.Do(r.ctx, r.p.cfg.Retry, func(ctx context.Context) error {
		return safely(func() error {
			var err error
			ref, err = sink.CreateTask(ctx, item)
			return err
		})
	}, func(err error, wait time.Duration) {
		ilog.WithError(err).WithField("wait", wait.String()).Warn("task creation failed, retrying")
	})

	out.Attempts = res.Attempts
	out.Waited = res.Waited
	if err != nil {
		if res.LastErr != nil && !errors.Is(err, res.LastErr) {
			err = fmt.Errorf("%w (last attempt: %v)", err, res.LastErr)
		}
		out.ErrorKind = mrerrors.KindOf(err)
		out.Error = err.Error()
		r.stepError(err, &item)
		ilog.WithError(err).WithField("attempts", res.Attempts).Error("task creation failed")
		r.p.deps.Metrics.Dispatched(sink.Name(), false, res.Attempts)
		return out
	}

	out.Succeeded = true
	out.Reference = &ref
	ilog.WithFields(logrus.Fields{"task_id": ref.ID, "attempts": res.Attempts}).Info("task created")
	r.p.deps.Metrics.Dispatched(sink.Name(), true, res.Attempts)
	return out
}

// notify delivers md, falling back to the store on failure. Only a failed
// fallback save is returned.
func (r *run) notify(md string) error {
	if n := r.p.deps.Notifier; n != nil {
		nlog := r.log.WithField("channel", n.Name())
		res, err := retry.Do(r.ctx, r.p.cfg.Retry, func(ctx context.Context) error {
			return safely(func() error { return n.Post(ctx, md) })
		}, func(err error, wait time.Duration) {
			nlog.WithError(err).WithField("wait", wait.String()).Warn("notification failed, retrying")
		})
		if err == nil {
			r.report.Delivered = true
			nlog.WithField("attempts", res.Attempts).Info("summary delivered")
			r.p.deps.Metrics.Notified("delivered")
			return nil
		}
		var ne *mrerrors.NotificationError
		if !errors.As(err, &ne) {
			err = &mrerrors.NotificationError{Kind: mrerrors.KindOf(err), Channel: n.Name(), Cause: err}
		}
		r.stepError(err, nil)
		nlog.WithError(err).Error("notification failed, saving summary locally")
	} else {
		r.log.Info("no notification channel configured, saving summary locally")
	}

	path, err := r.p.deps.Fallback.Save(md, suggestedName(r.report.Source, r.report.RunID))
	if err != nil {
		r.p.deps.Metrics.Notified("failed")
		var fe *mrerrors.FatalIOError
		if errors.As(err, &fe) {
			return err
		}
		return &mrerrors.FatalIOError{Op: "save", Path: path, Cause: err}
	}
	r.report.FallbackPath = path
	r.p.deps.Metrics.Notified("fallback")
	r.log.WithField("path", path).Info("summary saved to fallback store")
	return nil
}

func suggestedName(source, runID string) string {
	if source != "" {
		base := filepath.Base(source)
		if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" && name != "." {
			return name
		}
	}
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func safely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
