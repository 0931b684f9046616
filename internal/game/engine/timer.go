package engine

import "time"

// turnTimer 回合倒计时。一个会话任意时刻至多持有一个活动计时器，
// 由 startTimer 的先取消再启动保证，而不是靠调用方自觉。
type turnTimer struct {
	stop chan struct{}
}

// startTimer 为当前行动者启动倒计时。必须在事件循环内调用。
func (e *Engine) startTimer() {
	e.cancelTimer()
	e.timerStarts++
	e.timerGen++
	gen := e.timerGen

	e.Session.TimeRemaining = e.Cfg.TurnSeconds

	t := &turnTimer{stop: make(chan struct{})}
	e.timer = t

	go func() {
		ticker := time.NewTicker(e.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// tick 进事件循环排队，与玩家动作串行化；
				// gen 用来丢弃已被取消的计时器残留的 tick
				e.enqueue(command{kind: cmdTick, gen: gen})
			case <-t.stop:
				return
			}
		}
	}()
}

// cancelTimer 取消当前计时器（无计时器时为 no-op）。必须在事件循环内调用。
func (e *Engine) cancelTimer() {
	if e.timer == nil {
		return
	}
	close(e.timer.stop)
	e.timer = nil
	e.timerCancels++
}

// LiveTimers 活动计时器数量（启动数 - 取消数），不变量断言用
func (e *Engine) LiveTimers() int {
	return e.timerStarts - e.timerCancels
}
