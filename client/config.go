package client

import "time"

// Config 客户端配置（由 main 中的命令行参数填充）
type Config struct {
	ServerURL    string // ws://host:port/ws
	Name         string // 加入时使用的显示名
	BackdropPath string // 世界底图路径

	// 世界尺寸（世界坐标单位）
	WorldWidth  float64
	WorldHeight float64

	WindowWidth  int
	WindowHeight int

	// 输入：固定间隔采样方向键，多键时每键步长
	TickInterval time.Duration
	MoveStep     float64

	// 连接
	ReconnectDelay time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	SendQueueSize  int
	EventQueueSize int

	// 渲染
	MaxFPS        float64 // 重绘频率上限，<=0 不限
	DecodeWorkers int
	SpriteBox     float64 // 精灵缩放后长边
	CullMargin    float64
	LabelFontSize float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		Name:           "guest",
		BackdropPath:   "assets/world.png",
		WorldWidth:     2048,
		WorldHeight:    2048,
		WindowWidth:    800,
		WindowHeight:   600,
		TickInterval:   30 * time.Millisecond,
		MoveStep:       8,
		ReconnectDelay: 3 * time.Second,
		WriteWait:      5 * time.Second,
		PongWait:       60 * time.Second,
		SendQueueSize:  64,
		EventQueueSize: 1024,
		MaxFPS:         60,
		DecodeWorkers:  4,
		SpriteBox:      64,
		CullMargin:     50,
		LabelFontSize:  12,
	}
}

// pingPeriod 必须小于 PongWait
func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}
