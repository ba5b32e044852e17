// Package intake runs a lead through estimation, archiving and CRM submission.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ubuntu/decorate"

	"github.com/forgehomes/lead-intake/internal/crm"
	"github.com/forgehomes/lead-intake/internal/lead"
	"github.com/forgehomes/lead-intake/internal/store"
)

// Pipeline step names, used as the step label of the failure counter.
const (
	StepValidate = "validate"
	StepEstimate = "estimate"
	StepStore    = "store"
	StepCRM      = "crm"
)

// Estimator prices a property.
type Estimator interface {
	Estimate(ctx context.Context, sub lead.Submission) (lead.Estimate, error)
}

// ContactCreator creates a CRM contact and returns its id.
type ContactCreator interface {
	CreateContact(ctx context.Context, contact crm.Contact) (string, error)
}

// MappingProvider returns the contact mapping to apply to the next lead.
type MappingProvider interface {
	Mapping() crm.Mapping
}

// Result is what a successful run produced.
type Result struct {
	// Estimate is nil when no estimator is configured.
	Estimate *lead.Estimate
	// ContactID is the id of the CRM contact.
	ContactID string
	// RecordID is the id of the archived lead, empty when no store is configured.
	RecordID string
}

// Pipeline processes leads one step after the other. The first failing step aborts the run.
type Pipeline struct {
	estimator Estimator
	store     store.Store
	crm       ContactCreator
	mapping   MappingProvider

	now func() time.Time

	failures *prometheus.CounterVec
	leads    prometheus.Counter
}

type options struct {
	estimator Estimator
	store     store.Store
	mapping   MappingProvider
	registry  prometheus.Registerer
	now       func() time.Time
}

// Options represents an optional function to override Pipeline default values.
type Options func(*options)

// WithEstimator enables the estimate step.
func WithEstimator(e Estimator) Options {
	return func(o *options) {
		o.estimator = e
	}
}

// WithStore enables the archive step.
func WithStore(s store.Store) Options {
	return func(o *options) {
		o.store = s
	}
}

// WithMapping overrides the default contact mapping.
func WithMapping(m MappingProvider) Options {
	return func(o *options) {
		o.mapping = m
	}
}

// WithRegistry registers the pipeline metrics on reg instead of the default registerer.
func WithRegistry(reg prometheus.Registerer) Options {
	return func(o *options) {
		o.registry = reg
	}
}

type defaultMapping struct{}

func (defaultMapping) Mapping() crm.Mapping { return crm.DefaultMapping() }

// New returns a pipeline submitting leads to c.
func New(c ContactCreator, args ...Options) (*Pipeline, error) {
	if c == nil {
		return nil, fmt.Errorf("a CRM client is required")
	}

	opts := options{
		mapping:  defaultMapping{},
		registry: prometheus.DefaultRegisterer,
		now:      time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	factory := promauto.With(opts.registry)
	return &Pipeline{
		estimator: opts.estimator,
		store:     opts.store,
		crm:       c,
		mapping:   opts.mapping,
		now:       opts.now,

		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_intake_step_failures_total",
				Help: "Total number of leads rejected, by failing step.",
			},
			[]string{"step"},
		),
		leads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lead_intake_leads_total",
				Help: "Total number of leads submitted to the CRM.",
			},
		),
	}, nil
}

// Process validates sub, then estimates, archives and submits it, in that order.
// Nothing after a failing step runs, and earlier steps are not undone.
func (p *Pipeline) Process(ctx context.Context, sub lead.Submission) (res Result, err error) {
	log := slog.Default().With("email", sub.Email)

	if err := p.step(ctx, StepValidate, func(context.Context) error {
		return sub.Validate()
	}); err != nil {
		return Result{}, err
	}

	if p.estimator != nil {
		if err := p.step(ctx, StepEstimate, func(ctx context.Context) error {
			est, err := p.estimator.Estimate(ctx, sub)
			if err != nil {
				return err
			}
			res.Estimate = &est
			log.Debug("Estimate received", "estimate", est)
			return nil
		}); err != nil {
			return Result{}, err
		}
	}

	if p.store != nil {
		if err := p.step(ctx, StepStore, func(ctx context.Context) error {
			id, err := p.store.Add(ctx, lead.NewRecord(sub, res.Estimate, p.now()))
			if err != nil {
				return err
			}
			res.RecordID = id
			log.Debug("Lead archived", "record_id", id)
			return nil
		}); err != nil {
			return Result{}, err
		}
	}

	if err := p.step(ctx, StepCRM, func(ctx context.Context) error {
		id, err := p.crm.CreateContact(ctx, crm.BuildContact(sub, res.Estimate, p.mapping.Mapping()))
		if err != nil {
			return err
		}
		res.ContactID = id
		return nil
	}); err != nil {
		return Result{}, err
	}

	p.leads.Inc()
	log.Info("Lead processed", "contact_id", res.ContactID, "record_id", res.RecordID)
	return res, nil
}

func (p *Pipeline) step(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer decorate.OnError(&err, "%s step failed", name)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		p.failures.WithLabelValues(name).Inc()
		return err
	}
	return nil
}
