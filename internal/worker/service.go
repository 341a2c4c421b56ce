package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultReconcileInterval = 5 * time.Minute
)

// CompletionReconciler 补记集满的能力
type CompletionReconciler interface {
	ReconcileCompletions(ctx context.Context) (int, error)
}

// Service 异步队列服务
type Service struct {
	name       string
	server     *asynq.Server
	mux        *asynq.ServeMux
	consumer   *Consumer
	reconciler *Reconciler
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer, reconcileInterval time.Duration) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = asynqLogger{}
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	svc := &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}
	if consumer.Container != nil && consumer.CardService != nil {
		svc.reconciler = NewReconciler(consumer.CardService, reconcileInterval)
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.reconciler != nil {
		go s.reconciler.Run(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// Reconciler 周期性补记流水已达标但未记账的集点卡
type Reconciler struct {
	target   CompletionReconciler
	interval time.Duration
}

// NewReconciler 创建对账循环，interval 非正时使用默认值
func NewReconciler(target CompletionReconciler, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{target: target, interval: interval}
}

// RunOnce 执行一轮对账
func (r *Reconciler) RunOnce(ctx context.Context) int {
	if r == nil || r.target == nil {
		return 0
	}
	marked, err := r.target.ReconcileCompletions(ctx)
	if err != nil {
		logger.Warnw("worker_card_reconcile_failed", "error", err)
	}
	if marked > 0 {
		logger.Infow("worker_card_reconciled", "marked", marked)
	}
	return marked
}

// Run 阻塞运行直到 ctx 结束
func (r *Reconciler) Run(ctx context.Context) {
	if r == nil || r.target == nil {
		return
	}
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// ReconcileService 未启用队列时独立运行对账循环
type ReconcileService struct {
	reconciler *Reconciler
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}
}

// NewReconcileService 创建对账服务
func NewReconcileService(target CompletionReconciler, interval time.Duration) *ReconcileService {
	return &ReconcileService{
		reconciler: NewReconciler(target, interval),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Name 服务名称
func (s *ReconcileService) Name() string {
	return "card_reconcile"
}

// Start 启动服务，阻塞直到 ctx 结束或 Stop 被调用
func (s *ReconcileService) Start(ctx context.Context) error {
	if s == nil || s.reconciler == nil {
		return errors.New("reconciler not initialized")
	}
	defer close(s.done)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()
	s.reconciler.Run(runCtx)
	return nil
}

// Stop 停止服务
func (s *ReconcileService) Stop(ctx context.Context) error {
	if s == nil || s.stop == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
