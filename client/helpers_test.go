package client

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

// fakeScheduler 手动推进的调度器，回调同步执行
type fakeScheduler struct {
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	every   time.Duration
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

func (s *fakeScheduler) After(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: s.now + d, delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: s.now + d, every: d, delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance 依次触发到期的定时器
func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		var next *fakeTimer
		for _, t := range s.timers {
			if t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.stopped = true
		}
		next.fn()
	}
	s.now = target
}

// pending 返回尚未触发的一次性定时器
func (s *fakeScheduler) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && t.every == 0 {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) activeTickers() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && t.every > 0 {
			n++
		}
	}
	return n
}

type recordingSink struct {
	intents []Intent
}

func (s *recordingSink) Send(in Intent) { s.intents = append(s.intents, in) }

func (s *recordingSink) last() Intent {
	if len(s.intents) == 0 {
		return Intent{}
	}
	return s.intents[len(s.intents)-1]
}

type fakeSprite struct {
	w, h int
}

func (s fakeSprite) Size() (int, int) { return s.w, s.h }

// drawCall 记录一次绘制操作
type drawCall struct {
	op     string
	sprite Sprite
	x, y   float64
	w, h   float64
	scale  float64
	mirror bool
	text   string
}

// fakeSurface 记录绘制调用；文本宽度按每字符 6 单位计
type fakeSurface struct {
	w, h  int
	calls []drawCall
}

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }

func (s *fakeSurface) Clear() { s.calls = nil }

func (s *fakeSurface) DrawBackdrop(src Sprite, camX, camY float64) {
	s.calls = append(s.calls, drawCall{op: "backdrop", sprite: src, x: camX, y: camY})
}

func (s *fakeSurface) DrawSprite(sp Sprite, x, y, scale float64, mirror bool) {
	s.calls = append(s.calls, drawCall{op: "sprite", sprite: sp, x: x, y: y, scale: scale, mirror: mirror})
}

func (s *fakeSurface) FillRect(x, y, w, h float64, c color.Color) {
	s.calls = append(s.calls, drawCall{op: "rect", x: x, y: y, w: w, h: h})
}

func (s *fakeSurface) MeasureText(str string) (float64, float64) {
	return float64(len(str) * 6), 12
}

func (s *fakeSurface) DrawText(str string, x, y float64, c color.Color) {
	s.calls = append(s.calls, drawCall{op: "text", x: x, y: y, text: str})
}

func (s *fakeSurface) NewSprite(img image.Image) Sprite {
	b := img.Bounds()
	return fakeSprite{w: b.Dx(), h: b.Dy()}
}

func (s *fakeSurface) ops(op string) []drawCall {
	var out []drawCall
	for _, c := range s.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// drainUntil 模拟主循环：反复执行排队事件直到条件满足
func drainUntil(t *testing.T, q *EventQueue, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		q.Drain()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxFPS = 0
	return cfg
}

func player(id string, x, y float64) Player {
	return Player{ID: id, X: x, Y: y, Facing: FacingSouth, Avatar: "a1", Name: id}
}

func ptr[T any](v T) *T { return &v }
