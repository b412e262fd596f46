package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	applog "startuplens/internal/platform/log"
)

// RunFunc 调度器驱动的摄取入口。
type RunFunc func(ctx context.Context) error

// Scheduler 按固定间隔触发摄取。上一次运行未结束时的触发被合并
// (记日志后跳过),迟到超过宽限窗口的触发被丢弃。运行中的错误与
// panic 只记日志,调度循环本身永不退出。
type Scheduler struct {
	run      RunFunc
	interval time.Duration
	grace    time.Duration

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler 创建调度器。interval 默认 12 小时,grace 默认 1 小时。
func NewScheduler(run RunFunc, interval, grace time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	if grace <= 0 {
		grace = time.Hour
	}
	return &Scheduler{run: run, interval: interval, grace: grace}
}

// Start 启动调度循环。
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
	applog.Info("⏰ [Ingest] scheduler started", "interval", s.interval.String(), "grace", s.grace.String())
}

// Stop 取消调度并等待在途运行退出。
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	applog.Info("[Ingest] scheduler stopped")
}

// InFlight 返回当前是否有运行在途。
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	planned := time.Now().Add(s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			if misfired(planned, tick, s.grace) {
				applog.Warn("[Ingest] trigger missed its window, dropping",
					"planned", planned.Format(time.RFC3339), "late", tick.Sub(planned).String())
				planned = tick.Add(s.interval)
				continue
			}
			planned = planned.Add(s.interval)
			s.trigger(ctx)
		}
	}
}

// trigger 启动一次后台运行;上一轮还在进行时直接跳过。
func (s *Scheduler) trigger(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		applog.Warn("[Ingest] previous run still in progress, skipping trigger")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		defer func() {
			if rec := recover(); rec != nil {
				applog.Error("[Ingest] scheduled run panicked", "panic", rec)
			}
		}()

		if err := s.run(ctx); err != nil {
			applog.Error("[Ingest] scheduled run failed", "error", err)
		}
	}()
}

// misfired 判定触发是否迟到超限:实际触发时间晚于计划时间超过
// grace 即为误点。
func misfired(planned, actual time.Time, grace time.Duration) bool {
	return actual.Sub(planned) > grace
}
