package client

import (
	"sync/atomic"
)

// Metrics 客户端运行期指标，调试接口在其他协程读取，因此全部使用原子操作
type Metrics struct {
	MessagesReceived int64 // 收到的服务端消息
	MessagesIgnored  int64 // 格式错误或未知类型被忽略的消息
	IntentsSent      int64 // 已入发送队列的意图
	IntentsDropped   int64 // 未连接或队列满而丢弃的意图
	Reconnects       int64 // 已安排的重连次数
	FramesDecoded    int64 // 解码成功的动画帧
	DecodeFailures   int64 // 解码失败的动画帧
	Renders          int64 // 实际重绘次数
	connState        int32
	players          int64
}

func (m *Metrics) IncReceived() { atomic.AddInt64(&m.MessagesReceived, 1) }
func (m *Metrics) IncIgnored() { atomic.AddInt64(&m.MessagesIgnored, 1) }
func (m *Metrics) IncSent() { atomic.AddInt64(&m.IntentsSent, 1) }
func (m *Metrics) IncDropped() { atomic.AddInt64(&m.IntentsDropped, 1) }
func (m *Metrics) IncReconnects() { atomic.AddInt64(&m.Reconnects, 1) }
func (m *Metrics) IncDecoded() { atomic.AddInt64(&m.FramesDecoded, 1) }
func (m *Metrics) IncDecodeFailures() { atomic.AddInt64(&m.DecodeFailures, 1) }
func (m *Metrics) IncRenders() { atomic.AddInt64(&m.Renders, 1) }

func (m *Metrics) SetConnState(s ConnState) { atomic.StoreInt32(&m.connState, int32(s)) }
func (m *Metrics) SetPlayers(n int) { atomic.StoreInt64(&m.players, int64(n)) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"conn_state":        ConnState(atomic.LoadInt32(&m.connState)).String(),
		"players":           atomic.LoadInt64(&m.players),
		"messages_received": atomic.LoadInt64(&m.MessagesReceived),
		"messages_ignored":  atomic.LoadInt64(&m.MessagesIgnored),
		"intents_sent":      atomic.LoadInt64(&m.IntentsSent),
		"intents_dropped":   atomic.LoadInt64(&m.IntentsDropped),
		"reconnects":        atomic.LoadInt64(&m.Reconnects),
		"frames_decoded":    atomic.LoadInt64(&m.FramesDecoded),
		"decode_failures":   atomic.LoadInt64(&m.DecodeFailures),
		"renders":           atomic.LoadInt64(&m.Renders),
	}
}
