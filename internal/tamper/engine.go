package tamper

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
	"github.com/ugguru/url-fraud-detection/internal/imaging"
	"github.com/ugguru/url-fraud-detection/internal/logger"
)

// Engine runs the five metric analyzers over a normalized frame and fuses
// their scores into a tampering verdict. It holds no per-analysis state:
// one Engine serves any number of concurrent analyses, each of which owns
// its own Frame.
type Engine struct {
	analyzers []MetricAnalyzer // fixed metric order
	decoder   PayloadDecoder   // optional
	opts      Options
}

// NewEngine builds an engine with the standard five analyzers. decoder may
// be nil; the engine then reports verdicts without payloads.
func NewEngine(opts Options, decoder PayloadDecoder) *Engine {
	th := opts.Thresholds
	return &Engine{
		analyzers: []MetricAnalyzer{
			newQualityAnalyzer(th),
			newStructureAnalyzer(th),
			newNoiseAnalyzer(th),
			newSymmetryAnalyzer(th),
			newFinderAnalyzer(th),
		},
		decoder: decoder,
		opts:    opts,
	}
}

// Analyze produces the tampering report for one frame. progress may be nil.
// In sequential mode analyzers run in fixed metric order and progress
// fractions rise 0.2, 0.4, 0.6, 0.8, 1.0; in parallel mode completion order
// varies but the terminal 1.0 event still fires last. The only error cases
// are context cancellation and an internal fusion contract violation —
// anomalies, timeouts and undecodable payloads are all encoded in the
// report itself.
func (e *Engine) Analyze(ctx context.Context, f *imaging.Frame, progress ProgressFunc) (*Report, error) {
	var results []MetricResult
	var err error

	switch e.opts.Mode {
	case ModeParallel:
		results, err = e.runParallel(ctx, f, progress)
	default:
		results, err = e.runSequential(ctx, f, progress)
	}
	if err != nil {
		return nil, err
	}

	fused, severity, err := Fuse(results)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results:   results,
		RiskScore: fused,
		Severity:  severity,
	}

	if e.decoder != nil {
		if payload, derr := e.decoder.Decode(f.RGBA); derr == nil && payload != "" {
			report.Payload = payload
			report.PayloadPresent = true
		} else if derr != nil {
			// A verdict never depends on a decodable payload.
			logger.WithError(derr).Debug("payload decoding failed")
		}
	}
	return report, nil
}

func (e *Engine) runSequential(ctx context.Context, f *imaging.Frame, progress ProgressFunc) ([]MetricResult, error) {
	results := make([]MetricResult, 0, MetricCount)
	for i, a := range e.analyzers {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("analysis abandoned", ctx.Err())
		}
		r, err := e.runMetric(ctx, a, f)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
		e.emit(progress, ProgressEvent{
			Step:     i + 1,
			Name:     a.Metric(),
			Fraction: float64(i+1) / float64(MetricCount),
			Result:   &r,
		})
	}
	return results, nil
}

func (e *Engine) runParallel(ctx context.Context, f *imaging.Frame, progress ProgressFunc) ([]MetricResult, error) {
	results := make([]MetricResult, MetricCount)
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.analyzers {
		i, a := i, a
		g.Go(func() error {
			r, err := e.runMetric(gctx, a, f)
			if err != nil {
				return err
			}
			// Emission is serialized so fractions stay consistent with the
			// completion count and the 1.0 event is genuinely last.
			mu.Lock()
			results[i] = r
			completed++
			ev := ProgressEvent{
				Step:     i + 1,
				Name:     a.Metric(),
				Fraction: float64(completed) / float64(MetricCount),
				Result:   &r,
			}
			e.emit(progress, ev)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runMetric executes one analyzer under the per-metric budget. On overrun
// it substitutes the maximal-anomaly fallback and lets the pipeline
// continue; only caller cancellation aborts.
func (e *Engine) runMetric(ctx context.Context, a MetricAnalyzer, f *imaging.Frame) (MetricResult, error) {
	if e.opts.MetricTimeout <= 0 {
		return a.Analyze(f), nil
	}

	done := make(chan MetricResult, 1)
	go func() {
		done <- a.Analyze(f)
	}()

	timer := time.NewTimer(e.opts.MetricTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r, nil
	case <-timer.C:
		terr := apperrors.NewMetricTimeoutError(string(a.Metric())+" exceeded its budget", nil)
		logger.WithFields(logrus.Fields{
			"metric":  a.Metric(),
			"timeout": e.opts.MetricTimeout,
		}).Warn(terr.Message)
		return MetricResult{
			Metric:   a.Metric(),
			Score:    1.0,
			Evidence: []string{NoteMetricTimeout},
		}, nil
	case <-ctx.Done():
		return MetricResult{}, apperrors.NewTimeoutError("analysis abandoned", ctx.Err())
	}
}

// emit delivers a progress event, swallowing callback panics. A broken
// sink is the caller's problem, not the analysis's.
func (e *Engine) emit(progress ProgressFunc, ev ProgressEvent) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"step":  ev.Step,
				"panic": r,
			}).Warn("progress callback panicked")
		}
	}()
	progress(ev)
}
