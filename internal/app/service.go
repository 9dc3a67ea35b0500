// Package service assembles the pipeline from configuration: storage,
// queue, lock and timeline backends, the model clients and the worker pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/okian/voicebox/internal/adapters/blob"
	"github.com/okian/voicebox/internal/adapters/events"
	"github.com/okian/voicebox/internal/adapters/lock"
	"github.com/okian/voicebox/internal/adapters/mq/queue"
	"github.com/okian/voicebox/internal/adapters/mq/worker"
	"github.com/okian/voicebox/internal/adapters/oracle/claude"
	"github.com/okian/voicebox/internal/adapters/oracle/whisper"
	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/config"
	"github.com/okian/voicebox/internal/domain/dedupe"
	"github.com/okian/voicebox/internal/pipeline"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

const (
	redisPingTimeout     = 5 * time.Second
	queueMetricsInterval = 5 * time.Second
	lockTTLMargin        = 30 * time.Second
)

// Service owns every long-lived component built from the config.
type Service struct {
	mu sync.Mutex

	cfg    *config.Config
	logger logger.Logger

	db       *gorm.DB
	redis    redis.UniversalClient
	queue    queue.Queue
	pipeline *pipeline.Service
	pool     *worker.Pool

	// injected before Start, mostly by tests
	transcriber pipeline.Transcriber
	oracles     oracleSet

	started bool
	stopCh  chan struct{}
}

type oracleSet interface {
	pipeline.Analyzer
	pipeline.Matcher
	pipeline.Judge
	pipeline.Generator
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRedisClient uses an existing client instead of dialing redis_addr.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(s *Service) {
		s.redis = c
	}
}

// WithTranscriber replaces the speech-to-text client.
func WithTranscriber(t pipeline.Transcriber) Option {
	return func(s *Service) {
		s.transcriber = t
	}
}

// WithOracles replaces the model client used for analysis, matching,
// judging and synthesis.
func WithOracles(o oracleSet) Option {
	return func(s *Service) {
		s.oracles = o
	}
}

// New constructs a Service. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage and backends, builds the pipeline and starts workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.build(ctx); err != nil {
		_ = s.close()
		return err
	}

	s.stopCh = make(chan struct{})
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, s.pipeline.Handlers())
	s.pool.Start(ctx)
	go s.reportQueue(ctx)

	s.started = true
	s.logger.Info(ctx, "voicebox service started",
		logger.Int("workers", s.pool.Size()),
		logger.String("database", s.cfg.DatabaseDriver),
		logger.Bool("redis", s.redis != nil),
	)
	return nil
}

func (s *Service) build(ctx context.Context) error {
	db, err := repository.Open(ctx, s.cfg.DatabaseDriver, s.cfg.DatabaseDSN,
		repository.WithMaxOpenConns(s.cfg.DBMaxOpenConns),
		repository.WithMaxIdleConns(s.cfg.DBMaxIdleConns),
	)
	if err != nil {
		return err
	}
	s.db = db

	blobs, err := blob.NewFileStore(s.cfg.AudioDir, blob.WithMaxBytes(s.cfg.MaxAudioBytes))
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Store:   repository.NewGormStore(db),
		Blobs:   blobs,
		Deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize)),
	}
	if err := s.backends(ctx, &deps); err != nil {
		return err
	}
	s.queue = deps.Queue
	s.wireOracles(ctx, &deps)

	s.pipeline, err = pipeline.New(deps,
		pipeline.WithConfidenceThreshold(s.cfg.SynthesisConfidenceThreshold),
		pipeline.WithFeedbackLimit(s.cfg.SynthesisFeedbackLimit),
		pipeline.WithLogger(s.logger),
	)
	return err
}

// backends picks Redis-backed queue, lock and timeline when Redis is
// configured, in-process ones otherwise.
func (s *Service) backends(ctx context.Context, deps *pipeline.Deps) error {
	if s.redis == nil && s.cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
	}
	if s.redis == nil {
		deps.Queue = queue.NewInMemoryQueue(
			queue.WithCapacity(s.cfg.QueueSize),
			queue.WithBufferSize(s.cfg.QueueSize),
		)
		deps.Locker = lock.NewMemoryLocker()
		deps.Events = events.NewLogPublisher()
		s.logger.Warn(ctx, "redis not configured; queued tasks will not survive a restart")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := s.cfg.RedisKeyPrefix
	rq := queue.NewRedisQueue(s.redis, prefix,
		queue.WithMaxLen(int64(s.cfg.QueueSize)),
		queue.WithRedisLogger(s.logger.Named("queue")),
	)
	n, err := rq.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover unacknowledged tasks: %w", err)
	}
	if n > 0 {
		s.logger.Info(ctx, "requeued unacknowledged tasks", logger.Int("count", n))
	}
	deps.Queue = rq
	ttl := lockTTL(s.cfg.ConsolidationLockTTLMS)
	if ttl > time.Duration(s.cfg.ConsolidationLockTTLMS)*time.Millisecond {
		s.logger.Warn(ctx, "consolidation_lock_ttl_ms is shorter than the matcher retry budget; raised",
			logger.Int("configured_ms", s.cfg.ConsolidationLockTTLMS),
			logger.Duration("ttl", ttl),
		)
	}
	deps.Locker = lock.NewRedisLocker(s.redis, prefix, lock.WithTTL(ttl))
	deps.Events = events.NewRedisPublisher(s.redis, prefix)
	return nil
}

// lockTTL is the configured TTL, raised so the lock cannot lapse while a
// Match call is still retrying.
func lockTTL(configuredMS int) time.Duration {
	ttl := time.Duration(configuredMS) * time.Millisecond
	if floor := claude.MaxRetryElapsed + lockTTLMargin; ttl < floor {
		return floor
	}
	return ttl
}

// wireOracles builds the model clients. Missing credentials are not fatal:
// the stages that need the missing client fail with a configuration error.
func (s *Service) wireOracles(ctx context.Context, deps *pipeline.Deps) {
	if s.transcriber == nil {
		c, err := whisper.New(s.cfg.STTEndpoint, s.cfg.STTAPIKey,
			whisper.WithModel(s.cfg.STTModel),
			whisper.WithMaxRetries(s.cfg.OracleMaxRetries),
		)
		if err != nil {
			s.logger.Warn(ctx, "speech-to-text disabled", logger.Error(err))
		} else {
			s.transcriber = c
		}
	}
	if s.oracles == nil {
		c, err := claude.New(s.cfg.AnthropicAPIKey,
			claude.WithModel(s.cfg.AnthropicModel),
			claude.WithMaxRetries(s.cfg.OracleMaxRetries),
		)
		if err != nil {
			s.logger.Warn(ctx, "model oracles disabled", logger.Error(err))
		} else {
			s.oracles = c
		}
	}

	if s.transcriber != nil {
		deps.Transcriber = s.transcriber
	}
	if s.oracles != nil {
		deps.Analyzer = s.oracles
		deps.Matcher = s.oracles
		deps.Judge = s.oracles
		deps.Generator = s.oracles
	}
}

// Pipeline returns the running pipeline. Nil before Start.
func (s *Service) Pipeline() *pipeline.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

// Stop drains workers, waits for background batches and closes backends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping voicebox service...")
	close(s.stopCh)

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.pipeline.Wait()
	if err := s.close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "voicebox service stopped")
	return errors.Join(errs...)
}

func (s *Service) close() error {
	var errs []error
	if s.queue != nil && !s.queue.IsClosed() {
		errs = append(errs, s.queue.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, repository.Close(s.db))
	}
	return errors.Join(errs...)
}

// Stats reports stored rows, queue length and worker counters.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	p := s.Pipeline()
	if p == nil {
		return map[string]any{"started": false}, nil
	}
	st, err := p.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"started":           true,
		"workerCount":       s.pool.Size(),
		"tasksProcessed":    s.pool.Processed(),
		"queueLength":       st.QueueLength,
		"feedbackByStatus":  st.FeedbackByStatus,
		"tickets":           st.Tickets,
		"ticketsWithScores": st.TicketsWithCards,
		"redisBackedQueue":  s.redis != nil,
	}, nil
}

func (s *Service) reportQueue(ctx context.Context) {
	ticker := time.NewTicker(queueMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(s.queue.Len(ctx))
		}
	}
}
