package client

import (
	"encoding/json"
	"fmt"
)

// 消息类型（type 字段）
const (
	MsgJoin         = "join"
	MsgJoinResult   = "join_result"
	MsgPlayerJoined = "player_joined"
	MsgPlayersMoved = "players_moved"
	MsgPlayerLeft   = "player_left"
	MsgMove         = "move"
	MsgStop         = "stop"
)

type envelope struct {
	Type string `json:"type"`
}

// JoinRequest 连接建立后发送的加入请求
// 示例：{"type":"join","name":"alice"}
type JoinRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// 玩家与头像逐条保留原始 JSON，单条损坏不影响其余条目
type joinResultMessage struct {
	Success bool                       `json:"success"`
	ID      string                     `json:"id"`
	Players map[string]json.RawMessage `json:"players"`
	Avatars map[string]json.RawMessage `json:"avatars"`
	Error   string                     `json:"error"`
}

type playerJoinedMessage struct {
	Player json.RawMessage `json:"player"`
	Avatar json.RawMessage `json:"avatar"`
}

type playersMovedMessage struct {
	Players map[string]json.RawMessage `json:"players"`
}

type playerLeftMessage struct {
	ID string `json:"id"`
}

// IntentKind 意图类别
type IntentKind int

const (
	IntentMove IntentKind = iota + 1
	IntentMoveTo
	IntentStop
)

// Intent 客户端计算出的移动决策，待发送给服务端
type Intent struct {
	Kind      IntentKind
	Direction Direction
	X, Y      float64
}

func MoveIntent(d Direction) Intent { return Intent{Kind: IntentMove, Direction: d} }

func MoveToIntent(x, y float64) Intent { return Intent{Kind: IntentMoveTo, X: x, Y: y} }

func StopIntent() Intent { return Intent{Kind: IntentStop} }

// 出站意图的 JSON 结构
// 示例：{"type":"move","direction":"up"} / {"type":"move","x":10,"y":20} / {"type":"stop"}
type intentMessage struct {
	Type      string   `json:"type"`
	Direction string   `json:"direction,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

func encodeIntent(in Intent) ([]byte, error) {
	m := intentMessage{}
	switch in.Kind {
	case IntentMove:
		if !in.Direction.Valid() {
			return nil, fmt.Errorf("encode intent: invalid direction %d", in.Direction)
		}
		m.Type = MsgMove
		m.Direction = in.Direction.String()
	case IntentMoveTo:
		x, y := in.X, in.Y
		m.Type = MsgMove
		m.X, m.Y = &x, &y
	case IntentStop:
		m.Type = MsgStop
	default:
		return nil, fmt.Errorf("encode intent: unknown kind %d", in.Kind)
	}
	return json.Marshal(m)
}

func encodeJoin(name string) ([]byte, error) {
	return json.Marshal(JoinRequest{Type: MsgJoin, Name: name})
}

// decodePlayers 逐条解析，跳过无法解析的条目；map 的键即玩家 id
func decodePlayers(raw map[string]json.RawMessage) map[string]Player {
	out := make(map[string]Player, len(raw))
	for id, r := range raw {
		p, err := decodePlayer(r)
		if err != nil {
			Log.Warnf("skip player %q: %v", id, err)
			continue
		}
		p.ID = id
		out[id] = p
	}
	return out
}

func decodePlayer(r json.RawMessage) (Player, error) {
	var p *Player
	if err := json.Unmarshal(r, &p); err != nil {
		return Player{}, err
	}
	if p == nil {
		return Player{}, fmt.Errorf("null player")
	}
	return *p, nil
}

func decodeAvatars(raw map[string]json.RawMessage) map[string]Avatar {
	out := make(map[string]Avatar, len(raw))
	for name, r := range raw {
		a, err := decodeAvatar(r)
		if err != nil {
			Log.Warnf("skip avatar %q: %v", name, err)
			continue
		}
		a.Name = name
		out[name] = a
	}
	return out
}

func decodeAvatar(r json.RawMessage) (Avatar, error) {
	var a *Avatar
	if err := json.Unmarshal(r, &a); err != nil {
		return Avatar{}, err
	}
	if a == nil {
		return Avatar{}, fmt.Errorf("null avatar")
	}
	return *a, nil
}

func decodePatches(raw map[string]json.RawMessage) map[string]PlayerPatch {
	out := make(map[string]PlayerPatch, len(raw))
	for id, r := range raw {
		var pp *PlayerPatch
		if err := json.Unmarshal(r, &pp); err != nil {
			Log.Warnf("skip patch %q: %v", id, err)
			continue
		}
		if pp == nil {
			Log.Warnf("skip patch %q: null entry", id)
			continue
		}
		out[id] = *pp
	}
	return out
}
