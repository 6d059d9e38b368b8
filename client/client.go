package client

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/time/rate"
)

// 方向键映射
var directionKeys = map[ebiten.Key]Direction{
	ebiten.KeyArrowUp:    DirUp,
	ebiten.KeyArrowDown:  DirDown,
	ebiten.KeyArrowLeft:  DirLeft,
	ebiten.KeyArrowRight: DirRight,
}

// Client 顶层上下文：构造一次，显式持有并连接五个组件
// 重绘策略：任何状态变更或资源加载后置脏，Draw 在频率上限内重绘
type Client struct {
	cfg     Config
	queue   *EventQueue
	metrics *Metrics

	World    *WorldStateStore
	Camera   *CameraController
	Input    *InputResolver
	Conn     *ConnectionManager
	Renderer *Renderer

	surface *ebitenSurface
	limiter *rate.Limiter

	width, height int
	dirty         bool
	quit          bool
}

// New 创建使用 ebiten 绘制与真实网络连接的客户端
func New(cfg Config) (*Client, error) {
	surface, err := newEbitenSurface(cfg.WindowWidth, cfg.WindowHeight, cfg.LabelFontSize)
	if err != nil {
		return nil, err
	}
	q := NewEventQueue(cfg.EventQueueSize)
	c := newClient(cfg, q, NewLoopScheduler(q), surface, nil)
	c.surface = surface
	return c, nil
}

func newClient(cfg Config, q *EventQueue, sched Scheduler, surface Surface, dial DialFunc) *Client {
	metrics := &Metrics{}
	world := NewWorldStateStore()
	camera := NewCameraController(world, cfg.WorldWidth, cfg.WorldHeight)
	conn := NewConnectionManager(cfg, q, sched, world, metrics, dial)
	input := NewInputResolver(world, sched, conn, cfg)
	renderer := NewRenderer(surface, world, camera, q, metrics, cfg)

	limit := rate.Inf
	if cfg.MaxFPS > 0 {
		limit = rate.Limit(cfg.MaxFPS)
	}
	c := &Client{
		cfg:      cfg,
		queue:    q,
		metrics:  metrics,
		World:    world,
		Camera:   camera,
		Input:    input,
		Conn:     conn,
		Renderer: renderer,
		limiter:  rate.NewLimiter(limit, 1),
		width:    cfg.WindowWidth,
		height:   cfg.WindowHeight,
		dirty:    true,
	}
	conn.input = input
	conn.onChange = c.markDirty
	renderer.onLoaded = c.markDirty
	return c
}

func (c *Client) Metrics() *Metrics { return c.metrics }

// Start 开始连接并加载底图
func (c *Client) Start() {
	c.Renderer.LoadBackdrop(c.cfg.BackdropPath)
	c.Conn.Start()
}

// RequestQuit 可在任意协程调用，下一次 Update 结束游戏循环
func (c *Client) RequestQuit() {
	c.queue.Post(func() { c.quit = true })
}

func (c *Client) markDirty() { c.dirty = true }

// Update 每帧：采样按键 → 执行排队事件 → 重算相机
func (c *Client) Update() error {
	c.pollKeys(ebiten.IsKeyPressed)
	c.step()
	if c.quit {
		return ebiten.Termination
	}
	return nil
}

// pollKeys 按实际按键状态校正按下集合；断线期间只处理松开，重连后仍按住的键自动恢复
func (c *Client) pollKeys(isDown func(ebiten.Key) bool) {
	connected := c.Conn.State() == StateConnected
	for key, dir := range directionKeys {
		down := isDown(key)
		switch {
		case down && !c.Input.IsHeld(dir) && connected:
			c.Input.KeyDown(dir)
		case !down && c.Input.IsHeld(dir):
			c.Input.KeyUp(dir)
		}
	}
}

func (c *Client) step() {
	c.queue.Drain()
	c.Camera.Recompute(float64(c.width), float64(c.height))
}

// Draw 屏幕不会每帧清空，仅在脏且未超出频率上限时重绘
func (c *Client) Draw(screen *ebiten.Image) {
	c.surface.target(screen)
	c.redraw()
}

func (c *Client) redraw() bool {
	if !c.dirty || !c.limiter.Allow() {
		return false
	}
	c.dirty = false
	c.Renderer.Render()
	return true
}

// Layout 窗口尺寸变化时重算相机并重绘
func (c *Client) Layout(outsideWidth, outsideHeight int) (int, int) {
	c.resize(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}

func (c *Client) resize(w, h int) {
	if w == c.width && h == c.height {
		return
	}
	c.width, c.height = w, h
	c.Camera.Recompute(float64(w), float64(h))
	c.dirty = true
}

// Close 断开连接并停止事件循环
func (c *Client) Close() error {
	c.Input.Halt()
	err := c.Conn.Stop()
	c.queue.Close()
	c.Renderer.Wait()
	if err != nil {
		return fmt.Errorf("close client: %w", err)
	}
	return nil
}
