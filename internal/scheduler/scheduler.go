package scheduler

import (
	"context"
	"time"

	"magpie/internal/logger"
)

// DailyScheduler 每个交易日在固定本地时刻执行一次任务。
type DailyScheduler struct {
	Name           string
	At             Clock
	Location       *time.Location
	RunImmediately bool
	// SkipWeekends 为 true 时跳过周六、周日。
	SkipWeekends bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewDailyScheduler(ctx context.Context, at Clock, loc *time.Location) *DailyScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailyScheduler{
		At:       at,
		Location: loc,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start 阻塞直到 ctx 结束。
func (s *DailyScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("DailyScheduler: task is nil, exit")
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	prefix := "DailyScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	startAt := s.nowFn()
	logger.Infof("%s: started at=%s tz=%s run_immediately=%v skip_weekends=%v",
		prefix, s.At, s.Location, s.RunImmediately, s.SkipWeekends)

	if s.RunImmediately {
		logger.Infof("%s: RunImmediately=true, execute once before first slot", prefix)
		task()
	}

	for {
		now := s.nowFn()
		nextAt := s.Next(now)
		logger.Infof("%s: 下次执行=%s (in %s) | uptime=%s",
			prefix,
			nextAt.Format(time.RFC3339),
			nextAt.Sub(now).Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)
		if !s.waitUntil(nextAt) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		task()
	}
}

// Next 返回严格晚于 now 的下一个执行时刻。
func (s *DailyScheduler) Next(now time.Time) time.Time {
	local := now.In(s.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.At.Hour, s.At.Minute, 0, 0, s.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	for s.SkipWeekends && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *DailyScheduler) waitUntil(target time.Time) bool {
	wait := target.Sub(s.nowFn())
	if wait <= 0 {
		select {
		case <-s.ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	select {
	case <-s.ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}
