package client

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventQueue 单线程事件队列：网络、定时器、解码协程只投递闭包，由主循环统一执行
type EventQueue struct {
	ch        chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventQueue(size int) *EventQueue {
	return &EventQueue{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
}

// Post 投递事件；队列满时阻塞（保证同一连接的消息不丢且有序），关闭后直接丢弃
func (q *EventQueue) Post(fn func()) {
	select {
	case q.ch <- fn:
	case <-q.done:
	}
}

// Drain 执行本帧开始时已排队的事件（非阻塞），返回执行数量
func (q *EventQueue) Drain() int {
	n := len(q.ch)
	for i := 0; i < n; i++ {
		select {
		case fn := <-q.ch:
			fn()
		default:
			return i
		}
	}
	return n
}

// Close 停止接收新事件，阻塞中的投递者随即返回
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Timer 可取消的定时任务句柄
type Timer interface {
	Stop()
}

// Scheduler 定时回调都回到主循环执行
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

type loopScheduler struct {
	q *EventQueue
}

// NewLoopScheduler 基于 time 的调度器，回调通过 q 投递
func NewLoopScheduler(q *EventQueue) Scheduler {
	return &loopScheduler{q: q}
}

type loopTimer struct {
	stopped atomic.Bool
	t       *time.Timer
	quit    chan struct{}
	once    sync.Once
}

func (t *loopTimer) Stop() {
	t.stopped.Store(true)
	t.once.Do(func() {
		if t.t != nil {
			t.t.Stop()
		}
		if t.quit != nil {
			close(t.quit)
		}
	})
}

// fire 已排队但随后被取消的回调在主循环中丢弃
func (t *loopTimer) fire(fn func()) func() {
	return func() {
		if !t.stopped.Load() {
			fn()
		}
	}
}

func (s *loopScheduler) After(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() { s.q.Post(lt.fire(fn)) })
	return lt
}

func (s *loopScheduler) Every(d time.Duration, fn func()) Timer {
	lt := &loopTimer{quit: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.q.Post(lt.fire(fn))
			case <-lt.quit:
				return
			case <-s.q.done:
				return
			}
		}
	}()
	return lt
}
