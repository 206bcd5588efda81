// Package collector polls a fixed set of endpoints through a MetricsFetcher and
// publishes what it reads as prometheus series.
package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/melih/jmxbridge/internal/core/domain"
	"github.com/melih/jmxbridge/internal/core/ports"
	"github.com/melih/jmxbridge/internal/jmx"
)

// Target is one endpoint polled on its own cadence.
type Target struct {
	Name     string
	Endpoint domain.Endpoint
	Interval time.Duration
	Timeout  time.Duration
	Fallback bool     // try the host network before the container route
	Beans    []string // bean name substrings to keep; empty keeps all
}

// TargetState is the externally visible state of a target.
type TargetState struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	LastStatus  string    `json:"last_status"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastSource  string    `json:"last_source,omitempty"`
	Failures    int       `json:"consecutive_systemic_failures"`
	Stopped     bool      `json:"stopped"`
}

type Collector struct {
	fetcher ports.MetricsFetcher
	targets []Target
	backoff Backoff
	metrics *Metrics
	log     logrus.FieldLogger

	mu     sync.RWMutex
	states map[string]*TargetState

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a collector. metrics may be nil, in which case nothing is exported.
func New(fetcher ports.MetricsFetcher, targets []Target, backoff Backoff, metrics *Metrics, log logrus.FieldLogger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	states := make(map[string]*TargetState, len(targets))
	for _, t := range targets {
		states[t.Name] = &TargetState{Name: t.Name, URL: t.Endpoint.String(), LastStatus: "pending"}
	}
	return &Collector{
		fetcher: fetcher,
		targets: targets,
		backoff: backoff,
		metrics: metrics,
		log:     log,
		states:  states,
		stopCh:  make(chan struct{}),
	}
}

// Start launches one polling loop per target.
func (c *Collector) Start(ctx context.Context) {
	for _, t := range c.targets {
		c.wg.Add(1)
		go c.run(ctx, t)
	}
}

// Stop ends every loop and waits for in-flight polls.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) run(ctx context.Context, t Target) {
	defer c.wg.Done()
	for {
		delay, more := c.PollOnce(ctx, t)
		if !more {
			return
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.stopCh:
			timer.Stop()
			return
		}
	}
}

// PollOnce fetches t once, records the outcome and returns how long to wait
// before the next poll. more is false once the target has been stopped.
func (c *Collector) PollOnce(ctx context.Context, t Target) (delay time.Duration, more bool) {
	var (
		res domain.Result
		err error
	)
	if t.Fallback {
		res, err = c.fetcher.FetchWithFallback(ctx, t.Endpoint, t.Timeout)
	} else {
		res, err = c.fetcher.Fetch(ctx, t.Endpoint, t.Timeout)
	}
	status := domain.StatusOf(err)

	if c.metrics != nil {
		c.metrics.FetchTotal.WithLabelValues(t.Name, status.String()).Inc()
		c.metrics.FetchDuration.WithLabelValues(t.Name, string(res.Source)).Observe(res.Duration.Seconds())
	}

	fields := logrus.Fields{"target": t.Name, "status": status.String()}

	if err == nil {
		c.record(t, res)
		c.update(t.Name, func(s *TargetState) {
			s.LastStatus = status.String()
			s.LastError = ""
			s.LastSuccess = time.Now()
			s.LastSource = string(res.Source)
			s.Failures = 0
		})
		c.log.WithFields(fields).Debug("poll ok")
		return t.Interval, true
	}

	c.setUp(t.Name, 0)
	if !status.Systemic() {
		// Per-sample failure: skip this sample, keep the cadence.
		c.update(t.Name, func(s *TargetState) {
			s.LastStatus = status.String()
			s.LastError = err.Error()
		})
		c.log.WithFields(fields).Warnf("sample skipped: %v", err)
		return t.Interval, true
	}

	var failures int
	c.update(t.Name, func(s *TargetState) {
		s.LastStatus = status.String()
		s.LastError = err.Error()
		s.Failures++
		failures = s.Failures
	})
	fields["alert"] = true
	fields["failures"] = failures

	if c.backoff.Exhausted(failures) {
		c.update(t.Name, func(s *TargetState) { s.Stopped = true })
		c.log.WithFields(fields).Errorf("target stopped after %d systemic failures: %v", failures, err)
		return 0, false
	}
	delay = c.backoff.Delay(failures)
	c.log.WithFields(fields).Errorf("systemic failure, retrying in %s: %v", delay, err)
	return delay, true
}

// record publishes a successful body. Bodies that are not JMX documents still
// count as an up target; they just produce no value series.
func (c *Collector) record(t Target, res domain.Result) {
	c.setUp(t.Name, 1)
	if c.metrics == nil {
		return
	}
	samples, err := jmx.Decode(res.Body)
	if err != nil {
		c.log.WithField("target", t.Name).Debugf("body is not a jmx document: %v", err)
		return
	}
	samples = jmx.Filter(samples, t.Beans)

	// Beans come and go (e.g. after a restart); drop the previous snapshot.
	c.metrics.JMXValue.DeletePartialMatch(prometheus.Labels{"target": t.Name})
	for _, s := range samples {
		c.metrics.JMXValue.WithLabelValues(t.Name, s.Bean, s.Attribute).Set(s.Value)
	}
}

func (c *Collector) setUp(name string, v float64) {
	if c.metrics != nil {
		c.metrics.TargetUp.WithLabelValues(name).Set(v)
	}
}

func (c *Collector) update(name string, fn func(*TargetState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[name]; ok {
		fn(s)
	}
}

// States returns a copy of every target's state, sorted by name.
func (c *Collector) States() []TargetState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]TargetState, 0, len(c.states))
	for _, s := range c.states {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
