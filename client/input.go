package client

import "time"

// IntentSink 意图的接收方（ConnectionManager）
type IntentSink interface {
	Send(Intent)
}

// InputResolver 跟踪按下的方向键，并按固定间隔产生移动意图
// 以固定 Tick 采样而非逐按键事件发送，多键斜向移动在一次 Tick 中合并
type InputResolver struct {
	world *WorldStateStore
	sched Scheduler
	sink  IntentSink

	interval       time.Duration
	step           float64
	worldW, worldH float64

	held   [DirRight + 1]bool
	count  int
	ticker Timer // 非空表示正在采样
}

func NewInputResolver(world *WorldStateStore, sched Scheduler, sink IntentSink, cfg Config) *InputResolver {
	return &InputResolver{
		world:    world,
		sched:    sched,
		sink:     sink,
		interval: cfg.TickInterval,
		step:     cfg.MoveStep,
		worldW:   cfg.WorldWidth,
		worldH:   cfg.WorldHeight,
	}
}

// KeyDown 方向键按下；重复按下事件幂等，第一个按键启动采样
func (r *InputResolver) KeyDown(d Direction) {
	if !d.Valid() || r.held[d] {
		return
	}
	r.held[d] = true
	r.count++
	if r.count == 1 {
		r.startTicker()
	}
}

// KeyUp 方向键松开；全部松开时停止采样并发送一次 stop
func (r *InputResolver) KeyUp(d Direction) {
	if !d.Valid() || !r.held[d] {
		return
	}
	r.held[d] = false
	r.count--
	if r.count == 0 {
		r.stopTicker()
		r.sink.Send(StopIntent())
	}
}

// Halt 连接断开时调用：停止采样、清空按键，不发送 stop（对端已不存在）
func (r *InputResolver) Halt() {
	r.stopTicker()
	r.held = [DirRight + 1]bool{}
	r.count = 0
}

func (r *InputResolver) IsHeld(d Direction) bool { return d.Valid() && r.held[d] }

// Held 当前按下的方向键
func (r *InputResolver) Held() []Direction {
	out := make([]Direction, 0, r.count)
	for d := DirUp; d <= DirRight; d++ {
		if r.held[d] {
			out = append(out, d)
		}
	}
	return out
}

func (r *InputResolver) Ticking() bool { return r.ticker != nil }

func (r *InputResolver) startTicker() {
	if r.ticker != nil {
		return
	}
	r.ticker = r.sched.Every(r.interval, r.tick)
}

func (r *InputResolver) stopTicker() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
}

// tick 单键发送方向意图；多键时累加单位步长得到目标点，裁剪到世界范围后发送
func (r *InputResolver) tick() {
	if r.count == 0 {
		return
	}
	me, ok := r.world.LocalPlayer()
	if !ok {
		return
	}
	held := r.Held()
	if len(held) == 1 {
		r.sink.Send(MoveIntent(held[0]))
		return
	}
	var dx, dy float64
	for _, d := range held {
		ux, uy := d.delta()
		dx += ux * r.step
		dy += uy * r.step
	}
	x := min(max(me.X+dx, 0), r.worldW)
	y := min(max(me.Y+dy, 0), r.worldH)
	r.sink.Send(MoveToIntent(x, y))
}
