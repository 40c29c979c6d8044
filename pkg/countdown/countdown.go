// Package countdown 提供可取消的倒计时任务，用于短信验证码按钮的冷却时间
package countdown

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRunning 倒计时已在运行
	ErrRunning = errors.New("countdown: already running")
	// ErrInvalidTotal 倒计时总数必须为正数
	ErrInvalidTotal = errors.New("countdown: total must be positive")
)

// Countdown 倒计时
// 从 total 开始每个 interval 减一：剩余值大于 0 时回调 onTick(剩余值)，
// 第 total 个 interval 到达时回调 onDone 并结束。例如 total=60 时依次回调 59..1，第 60 秒结束。
// 回调在倒计时自己的 goroutine 中执行，同一时间最多运行一个倒计时
type Countdown struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New 创建倒计时，interval <= 0 时使用一秒
func New(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval}
}

// Interval 每次减一的间隔
func (c *Countdown) Interval() time.Duration {
	return c.interval
}

// Start 启动倒计时
// onTick、onDone 可以为 nil；已在运行时返回 ErrRunning
func (c *Countdown) Start(total int, onTick func(remaining int), onDone func()) error {
	if total <= 0 {
		return ErrInvalidTotal
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return ErrRunning
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go c.run(total, stop, done, onTick, onDone)
	return nil
}

func (c *Countdown) run(total int, stop, done chan struct{}, onTick func(int), onDone func()) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(done)

	remaining := total
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// select 在两者同时就绪时随机选择，这里再确认一次没有被 Stop
		select {
		case <-stop:
			return
		default:
		}

		if remaining == 1 {
			// 先释放运行状态，onDone 中可以立即开始下一次倒计时
			if !c.finish(stop) {
				return
			}
			if onDone != nil {
				onDone()
			}
			return
		}

		remaining--
		if onTick != nil {
			onTick(remaining)
		}
	}
}

// finish 倒计时正常结束时清除运行状态
// 与 Stop 竞争时以先到者为准，返回 false 表示已被 Stop
func (c *Countdown) finish(stop chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != stop {
		return false
	}
	c.stop, c.done = nil, nil
	return true
}

// Stop 取消正在运行的倒计时，onDone 不会被调用
// 返回是否确实取消了一个倒计时；返回 true 时不会再有回调发生
// 会等待正在执行的回调结束，因此不能在回调中调用，回调中请使用 Cancel
func (c *Countdown) Stop() bool {
	done, ok := c.cancel()
	if !ok {
		return false
	}
	<-done
	return true
}

// Cancel 取消正在运行的倒计时但不等待，可以在回调中调用
// 返回后不会再开始新的回调，但其他 goroutine 中正在执行的回调可能尚未结束
func (c *Countdown) Cancel() bool {
	_, ok := c.cancel()
	return ok
}

func (c *Countdown) cancel() (chan struct{}, bool) {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil, false
	}
	close(stop)
	return done, true
}

// Running 是否有倒计时正在运行
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}
