package client

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Sprite 已上传到绘制表面的图像句柄
type Sprite interface {
	Size() (w, h int)
}

// Surface 2D 绘制表面，尺寸即视口
type Surface interface {
	Size() (w, h int)
	Clear()
	// DrawBackdrop 以 (camX, camY) 为左上角截取底图并铺满视口
	DrawBackdrop(src Sprite, camX, camY float64)
	DrawSprite(s Sprite, x, y, scale float64, mirror bool)
	FillRect(x, y, w, h float64, c color.Color)
	MeasureText(s string) (w, h float64)
	DrawText(s string, x, y float64, c color.Color)
	NewSprite(img image.Image) Sprite
}

const (
	labelPadX = 4
	labelPadY = 2
	labelGap  = 2
)

var (
	labelBackground = color.RGBA{0, 0, 0, 160}
	labelForeground = color.White
	fallbackFill    = color.RGBA{40, 8, 8, 255}
	fallbackText    = "Unable to load the world map"
)

type backdropState int

const (
	backdropLoading backdropState = iota
	backdropReady
	backdropFailed
)

// frameKey 帧缓存键：头像身份 + 朝向 + 帧序号
type frameKey struct {
	avatar *Avatar
	facing Facing
	index  int
}

// frameEntry sprite 为空表示解码中
type frameEntry struct {
	sprite Sprite
}

// Renderer 读取世界镜像与相机绘制底图和玩家；动画帧按需异步解码并缓存
type Renderer struct {
	surface Surface
	world   *WorldStateStore
	camera  *CameraController
	queue   *EventQueue
	metrics *Metrics
	cfg     Config

	decode   func([]byte) (image.Image, error)
	workers  sizedwaitgroup.SizedWaitGroup // 限制同时解码数量
	inflight sync.WaitGroup                // 已发起尚未回投的解码
	onLoaded func()

	backdrop      Sprite
	backdropState backdropState

	cache      map[frameKey]*frameEntry
	cacheEpoch uint64
}

func NewRenderer(surface Surface, world *WorldStateStore, camera *CameraController, queue *EventQueue, metrics *Metrics, cfg Config) *Renderer {
	if metrics == nil {
		metrics = &Metrics{}
	}
	workers := cfg.DecodeWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Renderer{
		surface:  surface,
		world:    world,
		camera:   camera,
		queue:    queue,
		metrics:  metrics,
		cfg:      cfg,
		decode:   decodeImage,
		workers:  sizedwaitgroup.New(workers),
		onLoaded: func() {},
		cache:    make(map[frameKey]*frameEntry),
	}
}

// LoadBackdrop 异步加载底图，完成后回到主循环并触发重绘
func (r *Renderer) LoadBackdrop(path string) {
	r.backdropState = backdropLoading
	go func() {
		img, err := loadImageFile(path)
		r.queue.Post(func() {
			if err != nil {
				Log.Errorf("load backdrop %s: %v", path, err)
				r.backdropState = backdropFailed
			} else {
				r.backdrop = r.surface.NewSprite(img)
				r.backdropState = backdropReady
			}
			r.onLoaded()
		})
	}()
}

// Render 重绘整帧：底图（按相机裁剪）+ 所有可见玩家
func (r *Renderer) Render() {
	r.metrics.IncRenders()
	s := r.surface
	s.Clear()
	w, h := s.Size()
	vw, vh := float64(w), float64(h)

	if r.backdropState == backdropFailed {
		r.drawFallback(vw, vh)
		return
	}
	camX, camY := r.camera.Offset()
	if r.backdropState == backdropReady {
		s.DrawBackdrop(r.backdrop, camX, camY)
	}

	r.prune()
	for _, p := range r.world.Players() {
		r.drawPlayer(p, camX, camY, vw, vh)
	}
}

func (r *Renderer) drawPlayer(p Player, camX, camY, vw, vh float64) {
	sx, sy := p.X-camX, p.Y-camY
	// 粗略可见性判断：位置加上边距仍在视口外则跳过
	m := r.cfg.CullMargin
	if sx+m < 0 || sy+m < 0 || sx-m > vw || sy-m > vh {
		return
	}
	sprite := r.frame(p)
	if sprite == nil {
		return
	}
	w, h := sprite.Size()
	if w <= 0 || h <= 0 {
		return
	}
	scale := r.cfg.SpriteBox / float64(max(w, h))
	dw, dh := float64(w)*scale, float64(h)*scale
	top := sy - dh/2
	r.surface.DrawSprite(sprite, sx-dw/2, top, scale, p.Facing == FacingWest)
	r.drawLabel(p.Name, sx, top)
}

// drawLabel 名字标签：背景宽度 = 文本宽度 + 内边距，水平居中于精灵上方
func (r *Renderer) drawLabel(name string, cx, spriteTop float64) {
	if name == "" {
		return
	}
	tw, th := r.surface.MeasureText(name)
	bw, bh := tw+2*labelPadX, th+2*labelPadY
	bx, by := cx-bw/2, spriteTop-labelGap-bh
	r.surface.FillRect(bx, by, bw, bh, labelBackground)
	r.surface.DrawText(name, bx+labelPadX, by+labelPadY, labelForeground)
}

func (r *Renderer) drawFallback(vw, vh float64) {
	r.surface.FillRect(0, 0, vw, vh, fallbackFill)
	tw, th := r.surface.MeasureText(fallbackText)
	r.surface.DrawText(fallbackText, (vw-tw)/2, (vh-th)/2, labelForeground)
}

// frame 查找当前帧；缺失返回 nil，缓存未命中时发起异步解码并立即返回 nil
func (r *Renderer) frame(p Player) Sprite {
	av := r.world.Avatar(p.Avatar)
	if av == nil {
		return nil
	}
	frames, ok := av.Frames[p.Facing]
	if !ok || p.Frame < 0 || p.Frame >= len(frames) {
		return nil
	}
	key := frameKey{avatar: av, facing: p.Facing, index: p.Frame}
	if e, ok := r.cache[key]; ok {
		return e.sprite
	}
	r.cache[key] = &frameEntry{}
	r.decodeAsync(key, frames[p.Frame])
	return nil
}

func (r *Renderer) decodeAsync(key frameKey, payload []byte) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.workers.Add()
		img, err := r.decode(payload)
		r.workers.Done()
		r.queue.Post(func() { r.frameDecoded(key, img, err, len(payload)) })
	}()
}

// frameDecoded 主循环中回填缓存；失败则移除占位，下次绘制时重试
func (r *Renderer) frameDecoded(key frameKey, img image.Image, err error, size int) {
	e, ok := r.cache[key]
	if !ok || e.sprite != nil {
		return
	}
	if err != nil {
		delete(r.cache, key)
		r.metrics.IncDecodeFailures()
		Log.Debugf("decode frame %s/%s/%d (%s): %v", key.avatar.Name, key.facing, key.index, humanize.Bytes(uint64(size)), err)
		return
	}
	e.sprite = r.surface.NewSprite(img)
	r.metrics.IncDecoded()
	r.onLoaded()
}

// prune 头像集合变化后，丢弃已不在世界中的头像对应的缓存
func (r *Renderer) prune() {
	epoch := r.world.AvatarEpoch()
	if epoch == r.cacheEpoch {
		return
	}
	r.cacheEpoch = epoch
	for key := range r.cache {
		if r.world.Avatar(key.avatar.Name) != key.avatar {
			delete(r.cache, key)
		}
	}
}

// Wait 等待所有已发起的解码结束（含仍在排队等待工作槽的）
func (r *Renderer) Wait() {
	r.inflight.Wait()
}

func decodeImage(payload []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
