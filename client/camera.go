package client

// CameraController 由本地玩家位置推导视口偏移，不保存位置副本
type CameraController struct {
	world          *WorldStateStore
	worldW, worldH float64

	x, y float64
}

func NewCameraController(world *WorldStateStore, worldW, worldH float64) *CameraController {
	return &CameraController{world: world, worldW: worldW, worldH: worldH}
}

// Recompute 以本地玩家为中心，再按轴裁剪到 [0, world-viewport]；本地玩家未知时不变
func (c *CameraController) Recompute(viewportW, viewportH float64) {
	p, ok := c.world.LocalPlayer()
	if !ok {
		return
	}
	c.x = clampAxis(p.X-viewportW/2, c.worldW, viewportW)
	c.y = clampAxis(p.Y-viewportH/2, c.worldH, viewportH)
}

func (c *CameraController) Offset() (x, y float64) { return c.x, c.y }

// clampAxis 视口大于世界时上界塌缩为 0
func clampAxis(v, world, view float64) float64 {
	hi := max(world-view, 0)
	return min(max(v, 0), hi)
}
