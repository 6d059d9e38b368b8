package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
)

// ConnState 连接状态
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// DialFunc 建立 WebSocket 连接，测试可替换
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

func defaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return ws, err
}

// ClientConn 负责读写 WebSocket 的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	cfg  Config
}

func NewClientConn(ws *websocket.Conn, cfg Config) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, cfg.SendQueueSize),
		cfg:  cfg,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃），仅在主循环调用
func (c *ClientConn) Enqueue(b []byte) bool {
	if c.send == nil {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃而不是阻塞主循环
		return false
	}
}

func (c *ClientConn) closeSend() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// abort 对端已断开：直接关闭底层连接，不写关闭帧，不会阻塞主循环
func (c *ClientConn) abort() error {
	c.closeSend()
	return c.ws.Close()
}

// Close 主动关闭（退出时）：先发送关闭帧，再关闭发送队列与底层连接
// 关闭帧写入最长等待 WriteWait
func (c *ClientConn) Close() error {
	deadline := time.Now().Add(c.cfg.WriteWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	c.closeSend()
	return multierr.Combine(werr, c.ws.Close())
}

// writePump 独立协程：从 send 队列写出，并定时 ping 维持连接
func (c *ClientConn) writePump(send <-chan []byte) {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				// 写错误只记录；重连由读协程感知关闭后触发
				Log.Warnf("ws write error: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				Log.Warnf("ws ping error: %v", err)
				return
			}
		}
	}
}

// readPump 独立协程：读取服务端消息交给 onMessage，连接结束时调用一次 onClose
func (c *ClientConn) readPump(onMessage func([]byte), onClose func(error)) {
	c.ws.SetReadLimit(16 << 20) // 16MB，头像帧内嵌在消息中
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Warnf("ws read error: %v", err)
			}
			onClose(err)
			return
		}
		onMessage(payload)
	}
}

// ConnectionManager 持有到服务端的长连接：入站事件写入世界镜像，出站发送意图，断线后定时重连
// 所有方法都在主循环中执行；网络协程只通过 EventQueue 回投事件
type ConnectionManager struct {
	cfg     Config
	queue   *EventQueue
	sched   Scheduler
	world   *WorldStateStore
	metrics *Metrics
	dial    DialFunc

	input    interface{ Halt() }
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc

	state     ConnState
	conn      *ClientConn
	gen       int   // 连接代次，用于丢弃旧连接的迟到事件
	reconnect Timer // 非空表示已安排重连，不重复安排
	stopped   bool
}

func NewConnectionManager(cfg Config, queue *EventQueue, sched Scheduler, world *WorldStateStore, metrics *Metrics, dial DialFunc) *ConnectionManager {
	if dial == nil {
		dial = defaultDial
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		cfg:      cfg,
		queue:    queue,
		sched:    sched,
		world:    world,
		metrics:  metrics,
		dial:     dial,
		onChange: func() {},
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (cm *ConnectionManager) State() ConnState { return cm.state }

// Start Disconnected → Connecting，在独立协程中拨号
func (cm *ConnectionManager) Start() {
	if cm.stopped || cm.state != StateDisconnected {
		return
	}
	cm.setState(StateConnecting)
	cm.gen++
	gen := cm.gen
	url := cm.cfg.ServerURL
	Log.Infof("connecting to %s", url)
	go func() {
		ws, err := cm.dial(cm.ctx, url)
		cm.queue.Post(func() { cm.onDial(gen, ws, err) })
	}()
}

func (cm *ConnectionManager) onDial(gen int, ws *websocket.Conn, err error) {
	if gen != cm.gen || cm.stopped {
		if ws != nil {
			_ = ws.Close()
		}
		return
	}
	if err != nil {
		Log.Warnf("dial %s: %v", cm.cfg.ServerURL, err)
		cm.onClose(gen, err)
		return
	}
	cm.onOpen(gen, ws)
}

// onOpen 发送加入请求并进入 Connected
func (cm *ConnectionManager) onOpen(gen int, ws *websocket.Conn) {
	conn := NewClientConn(ws, cm.cfg)
	cm.conn = conn
	if b, err := encodeJoin(cm.cfg.Name); err != nil {
		Log.Errorf("encode join: %v", err)
	} else {
		conn.Enqueue(b)
	}
	cm.setState(StateConnected)
	Log.Infof("connected to %s as %q", cm.cfg.ServerURL, cm.cfg.Name)

	go conn.writePump(conn.send)
	go conn.readPump(
		func(data []byte) { cm.queue.Post(func() { cm.onMessage(gen, data) }) },
		func(err error) { cm.queue.Post(func() { cm.onClose(gen, err) }) },
	)
}

// onClose 任一方关闭或拨号失败：进入 Disconnected，停止输入采样，安排一次重连
func (cm *ConnectionManager) onClose(gen int, err error) {
	if gen != cm.gen || cm.state == StateDisconnected {
		return
	}
	if cm.conn != nil {
		_ = cm.conn.abort()
		cm.conn = nil
	}
	cm.setState(StateDisconnected)
	cm.world.Detach()
	if cm.input != nil {
		cm.input.Halt()
	}
	if cm.stopped {
		return
	}
	Log.Infof("disconnected (%v); reconnecting in %s", err, cm.cfg.ReconnectDelay)
	cm.scheduleReconnect()
	cm.onChange()
}

func (cm *ConnectionManager) scheduleReconnect() {
	if cm.reconnect != nil {
		return
	}
	cm.metrics.IncReconnects()
	cm.reconnect = cm.sched.After(cm.cfg.ReconnectDelay, func() {
		cm.reconnect = nil
		cm.Start()
	})
}

// Send 仅在 Connected 时发送；断线期间直接丢弃，不排队
func (cm *ConnectionManager) Send(in Intent) {
	if cm.state != StateConnected || cm.conn == nil {
		cm.metrics.IncDropped()
		return
	}
	b, err := encodeIntent(in)
	if err != nil {
		Log.Errorf("send: %v", err)
		return
	}
	if !cm.conn.Enqueue(b) {
		cm.metrics.IncDropped()
		return
	}
	cm.metrics.IncSent()
}

// Stop 退出时在游戏循环结束后调用：取消重连并正常关闭连接
func (cm *ConnectionManager) Stop() error {
	if cm.stopped {
		return nil
	}
	cm.stopped = true
	cm.cancel()
	if cm.reconnect != nil {
		cm.reconnect.Stop()
		cm.reconnect = nil
	}
	var err error
	if cm.conn != nil {
		err = cm.conn.Close()
		cm.conn = nil
	}
	cm.setState(StateDisconnected)
	return err
}

func (cm *ConnectionManager) setState(s ConnState) {
	cm.state = s
	cm.metrics.SetConnState(s)
}

// onMessage 按 type 分发到世界镜像；未知类型或格式错误记录后忽略
func (cm *ConnectionManager) onMessage(gen int, data []byte) {
	if gen != cm.gen || cm.state != StateConnected {
		return
	}
	cm.metrics.IncReceived()
	if !cm.dispatch(data) {
		cm.metrics.IncIgnored()
		return
	}
	cm.metrics.SetPlayers(cm.world.Len())
	cm.onChange()
}

func (cm *ConnectionManager) dispatch(data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		Log.Warnf("malformed message (%s): %v", humanize.Bytes(uint64(len(data))), err)
		return false
	}
	switch env.Type {
	case MsgJoinResult:
		var m joinResultMessage
		if err := json.Unmarshal(data, &m); err != nil {
			Log.Warnf("malformed %s: %v", env.Type, err)
			return false
		}
		if !m.Success {
			// 加入被拒：保持未加入，不重试加入本身
			Log.Errorf("join rejected: %s", m.Error)
			return false
		}
		cm.world.ApplyJoinSnapshot(m.ID, decodePlayers(m.Players), decodeAvatars(m.Avatars))
		Log.Infof("joined as %s (%d players, %s snapshot)", m.ID, cm.world.Len(), humanize.Bytes(uint64(len(data))))
	case MsgPlayerJoined:
		var m playerJoinedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			Log.Warnf("malformed %s: %v", env.Type, err)
			return false
		}
		p, err := decodePlayer(m.Player)
		if err != nil {
			Log.Warnf("malformed %s player: %v", env.Type, err)
			return false
		}
		a, err := decodeAvatar(m.Avatar)
		if err != nil {
			Log.Warnf("malformed %s avatar: %v", env.Type, err)
		}
		cm.world.ApplyPlayerJoined(p, a)
	case MsgPlayersMoved:
		var m playersMovedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			Log.Warnf("malformed %s: %v", env.Type, err)
			return false
		}
		cm.world.ApplyPlayersMoved(decodePatches(m.Players))
	case MsgPlayerLeft:
		var m playerLeftMessage
		if err := json.Unmarshal(data, &m); err != nil {
			Log.Warnf("malformed %s: %v", env.Type, err)
			return false
		}
		cm.world.RemovePlayer(m.ID)
	default:
		Log.Warnf("unknown message type %q", env.Type)
		return false
	}
	return true
}
