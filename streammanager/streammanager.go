//go:generate mockgen -destination mock_streammanager/mock_streammanager.go github.com/anyproto/any-stream/streammanager StreamManager
package streammanager

import (
	"context"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/anyproto/any-sync/app/ocache"
	"github.com/anyproto/any-sync/metric"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anyproto/any-stream/streamplan"
)

const CName = "common.streammanager"

var log = logger.NewNamed(CName)

var ErrPlanNotFound = errors.New("streaming plan not found")

func New() StreamManager {
	return new(streamManager)
}

// StreamManager is the process-wide registry of streaming plans, owned by the
// hosting app. Plans register on creation; the receiving side finds or
// creates a plan lazily on the first inbound notification for its planId.
// Resolved plans stay available for lookup until the configured TTL expires;
// pending plans are never collected.
type StreamManager interface {
	// NewPlan creates a sending side plan with a fresh planId and runs the
	// whole init protocol: register, attach listeners, wire every session
	// into the aggregator and only then open all connections.
	NewPlan(ctx context.Context, description string, coordinator streamplan.Coordinator, state *streamplan.PlanState, listeners ...streamplan.EventListener) (*streamplan.StreamResult, error)
	// Get returns the plan registered under planId
	Get(ctx context.Context, planId string) (*streamplan.StreamResult, error)
	// GetOrCreateReceiving returns the plan registered under planId, creating
	// and registering it when this is the first notification for the plan
	GetOrCreateReceiving(ctx context.Context, planId, description string, coordinator streamplan.Coordinator, state *streamplan.PlanState) (*streamplan.StreamResult, error)
	app.ComponentRunnable
}

type streamManager struct {
	plans   ocache.OCache
	conf    Config
	metrics *planMetrics
}

func (s *streamManager) Init(a *app.App) (err error) {
	s.conf = defaultConfig()
	if cg, ok := a.Component("config").(configGetter); ok {
		s.conf = cg.GetStreamManager()
	}
	cacheOpts := []ocache.Option{
		ocache.WithTTL(time.Duration(s.conf.PlanTTLSec) * time.Second),
		ocache.WithGCPeriod(time.Duration(s.conf.GCPeriodSec) * time.Second),
		ocache.WithLogger(log.Sugar()),
	}
	if m, ok := a.Component(metric.CName).(metric.Metric); ok {
		s.metrics = registerMetrics(m.Registry())
		cacheOpts = append(cacheOpts, ocache.WithPrometheus(m.Registry(), "stream", "plans"))
	}
	s.plans = ocache.New(func(ctx context.Context, id string) (ocache.Object, error) {
		// plans are registered explicitly, never loaded by the cache
		return nil, ErrPlanNotFound
	}, cacheOpts...)
	return nil
}

func (s *streamManager) Name() (name string) {
	return CName
}

func (s *streamManager) Run(ctx context.Context) (err error) {
	return nil
}

func (s *streamManager) NewPlan(ctx context.Context, description string, coordinator streamplan.Coordinator, state *streamplan.PlanState, listeners ...streamplan.EventListener) (res *streamplan.StreamResult, err error) {
	planId := uuid.New().String()
	res = streamplan.NewStreamResult(planId, description, coordinator, state)
	if err = s.register(res); err != nil {
		return nil, err
	}
	if err = res.Start(ctx, listeners...); err != nil {
		// connect failed before any session became active: drop the
		// registration, Remove force-resolves the pending plan
		if _, rErr := s.plans.Remove(ctx, planId); rErr != nil {
			log.Warn("can't remove failed plan", zap.Error(rErr), zap.String("planId", planId))
		}
		return nil, err
	}
	return res, nil
}

func (s *streamManager) Get(ctx context.Context, planId string) (*streamplan.StreamResult, error) {
	v, err := s.plans.Pick(ctx, planId)
	if err != nil {
		if errors.Is(err, ocache.ErrNotExists) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return v.(*streamplan.StreamResult), nil
}

func (s *streamManager) GetOrCreateReceiving(ctx context.Context, planId, description string, coordinator streamplan.Coordinator, state *streamplan.PlanState) (*streamplan.StreamResult, error) {
	for {
		res, err := s.Get(ctx, planId)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrPlanNotFound) {
			return nil, err
		}
		created := streamplan.NewStreamResult(planId, description, coordinator, state)
		if err = s.register(created); err != nil {
			if errors.Is(err, ocache.ErrExists) {
				// lost the race to a concurrent notification
				continue
			}
			return nil, err
		}
		log.Info("created receiving side plan", zap.String("planId", planId), zap.String("description", description))
		return created, nil
	}
}

func (s *streamManager) register(res *streamplan.StreamResult) error {
	if err := s.plans.Add(res.PlanId(), res); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.observe(res)
	}
	return nil
}

func (s *streamManager) Close(ctx context.Context) (err error) {
	return s.plans.Close()
}
