package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
)

type State string

const (
	Idle        State = "Idle"
	Parsing     State = "Parsing"
	Extracting  State = "Extracting"
	Scoring     State = "Scoring"
	Dispatching State = "Dispatching"
	Summarizing State = "Summarizing"
	Notifying   State = "Notifying"
	Done        State = "Done"
	Failed      State = "Failed"
)

type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// StepError is a non-fatal error recorded during a step.
type StepError struct {
	Step    State             `json:"step"`
	Kind    mrerrors.Kind     `json:"kind,omitempty"`
	Message string            `json:"message"`
	Item    *types.ActionItem `json:"item,omitempty"`
	At      time.Time         `json:"at"`
	Err     error             `json:"-" yaml:"-"`
}

// Report is the outcome of one run. Summary is empty and Err is a
// *mrerrors.FatalIOError exactly when State is Failed.
type Report struct {
	RunID        string                 `json:"run_id"`
	Source       string                 `json:"source"`
	State        State                  `json:"state"`
	Transitions  []Transition           `json:"transitions"`
	Result       types.ProcessingResult `json:"result"`
	Summary      string                 `json:"summary,omitempty"`
	Delivered    bool                   `json:"delivered"`
	FallbackPath string                 `json:"fallback_path,omitempty"`
	StepErrors   []StepError            `json:"step_errors,omitempty"`
	Err          error                  `json:"-" yaml:"-"`
	Error        string                 `json:"error,omitempty"`
}

type run struct {
	p      *Pipeline
	ctx    context.Context
	log    *logrus.Entry
	report *Report
}

func (r *run) transition(to State) {
	from := r.report.State
	r.report.Transitions = append(r.report.Transitions, Transition{From: from, To: to, At: time.Now()})
	r.report.State = to
	r.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("state transition")
}

// step enters state and runs fn. A panic in fn is recorded as a step error
// and the run carries on with whatever fn produced.
func (r *run) step(state State, fn func()) {
	r.transition(state)
	start := time.Now()
	defer func() {
		r.p.deps.Metrics.ObserveStep(string(state), time.Since(start))
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in %s: %v", state, rec)
			r.log.WithField("stack", string(debug.Stack())).WithError(err).Error("step panicked")
			r.stepError(err, nil)
		}
	}()
	fn()
}

func (r *run) stepError(err error, item *types.ActionItem) {
	se := StepError{
		Step:    r.report.State,
		Kind:    mrerrors.KindOf(err),
		Message: err.Error(),
		At:      time.Now(),
		Err:     err,
	}
	if item != nil {
		it := *item
		se.Item = &it
	}
	var pe *mrerrors.ParseError
	if errors.As(err, &pe) {
		se.Kind = mrerrors.KindNone
		r.log.WithFields(logrus.Fields{"step": r.report.State, "offset": pe.Offset}).Warn(pe.Reason)
	}
	r.report.StepErrors = append(r.report.StepErrors, se)
}

func (r *run) fail(err error) *Report {
	r.transition(Failed)
	r.report.Err = err
	r.report.Error = err.Error()
	r.report.Summary = ""
	r.p.deps.Metrics.RunFinished(string(Failed))
	r.log.WithError(err).Error("pipeline run failed")
	return r.report
}
