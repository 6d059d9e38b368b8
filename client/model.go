package client

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Facing 玩家朝向，决定使用头像的哪一组动画帧
type Facing string

const (
	FacingNorth Facing = "north"
	FacingSouth Facing = "south"
	FacingEast  Facing = "east"
	FacingWest  Facing = "west"
)

func (f Facing) Valid() bool {
	switch f {
	case FacingNorth, FacingSouth, FacingEast, FacingWest:
		return true
	}
	return false
}

// Direction 方向键（客户端“意图”，由服务端权威解释）
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

var directionNames = [...]string{"", "up", "down", "left", "right"}

func (d Direction) Valid() bool { return d >= DirUp && d <= DirRight }

func (d Direction) String() string {
	if !d.Valid() {
		return "none"
	}
	return directionNames[d]
}

// delta 单位步长向量：上减 y，下加 y，左减 x，右加 x
func (d Direction) delta() (dx, dy float64) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	}
	return 0, 0
}

// Player 服务端下发的玩家状态（本地镜像，不在本地修改）
type Player struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing Facing  `json:"facing"`
	Frame  int     `json:"frame"`
	Avatar string  `json:"avatar"`
	Name   string  `json:"name"`
}

func (p Player) validate() error {
	if p.ID == "" {
		return errors.New("missing id")
	}
	if !p.Facing.Valid() {
		return fmt.Errorf("invalid facing %q", p.Facing)
	}
	if p.Frame < 0 {
		return fmt.Errorf("negative frame %d", p.Frame)
	}
	if !finite(p.X) || !finite(p.Y) {
		return errors.New("non-finite position")
	}
	return nil
}

// PlayerPatch players_moved 中的部分字段，nil 表示未携带
type PlayerPatch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Facing *Facing  `json:"facing,omitempty"`
	Frame  *int     `json:"frame,omitempty"`
	Avatar *string  `json:"avatar,omitempty"`
	Name   *string  `json:"name,omitempty"`
}

func (pp PlayerPatch) validate() error {
	if pp.Facing != nil && !pp.Facing.Valid() {
		return fmt.Errorf("invalid facing %q", *pp.Facing)
	}
	if pp.Frame != nil && *pp.Frame < 0 {
		return fmt.Errorf("negative frame %d", *pp.Frame)
	}
	if (pp.X != nil && !finite(*pp.X)) || (pp.Y != nil && !finite(*pp.Y)) {
		return errors.New("non-finite position")
	}
	return nil
}

// applyTo 只覆盖携带的字段
func (pp PlayerPatch) applyTo(p *Player) {
	if pp.X != nil {
		p.X = *pp.X
	}
	if pp.Y != nil {
		p.Y = *pp.Y
	}
	if pp.Facing != nil {
		p.Facing = *pp.Facing
	}
	if pp.Frame != nil {
		p.Frame = *pp.Frame
	}
	if pp.Avatar != nil {
		p.Avatar = *pp.Avatar
	}
	if pp.Name != nil {
		p.Name = *pp.Name
	}
}

// FramePayload 一帧编码后的图像数据，接受纯 base64 或 data URL
type FramePayload []byte

func (fp *FramePayload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return errors.New("frame payload: unsupported data url")
		}
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("frame payload: %w", err)
	}
	*fp = raw
	return nil
}

// Avatar 头像：每个朝向一组有序帧，收到后不可变
type Avatar struct {
	Name   string                    `json:"name"`
	Frames map[Facing][]FramePayload `json:"frames"`
}

func (a Avatar) validate() error {
	if a.Name == "" {
		return errors.New("missing avatar name")
	}
	for f := range a.Frames {
		if !f.Valid() {
			return fmt.Errorf("invalid facing %q", f)
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
