package client

import (
	"sort"
)

// WorldStateStore 本地世界镜像：玩家与头像的唯一数据源，仅在主循环中读写
type WorldStateStore struct {
	localID string
	joined  bool

	players map[string]Player
	avatars map[string]*Avatar

	// 头像集合每次变化时递增，渲染器据此清理帧缓存
	avatarEpoch uint64
}

func NewWorldStateStore() *WorldStateStore {
	return &WorldStateStore{
		players: make(map[string]Player),
		avatars: make(map[string]*Avatar),
	}
}

// ApplyJoinSnapshot 用加入成功时的全量快照替换整个镜像
func (w *WorldStateStore) ApplyJoinSnapshot(localID string, players map[string]Player, avatars map[string]Avatar) {
	w.localID = localID
	w.joined = true
	w.players = make(map[string]Player, len(players))
	w.avatars = make(map[string]*Avatar, len(avatars))
	for id, p := range players {
		if p.ID == "" {
			p.ID = id
		}
		w.putPlayer(p)
	}
	for name, a := range avatars {
		if a.Name == "" {
			a.Name = name
		}
		w.putAvatar(a)
	}
	w.avatarEpoch++
	if _, ok := w.players[localID]; !ok {
		Log.Warnf("join snapshot does not contain local player %q", localID)
	}
}

// ApplyPlayerJoined 插入或覆盖一个玩家及其头像
func (w *WorldStateStore) ApplyPlayerJoined(p Player, a Avatar) {
	w.putPlayer(p)
	if w.putAvatar(a) {
		w.avatarEpoch++
	}
}

// ApplyPlayersMoved 按 id 合并补丁：只覆盖携带的字段，未出现的玩家保持不变
func (w *WorldStateStore) ApplyPlayersMoved(patch map[string]PlayerPatch) {
	for id, pp := range patch {
		if id == "" {
			Log.Warnf("players_moved: skip entry without id")
			continue
		}
		if err := pp.validate(); err != nil {
			Log.Warnf("players_moved: skip %q: %v", id, err)
			continue
		}
		p, ok := w.players[id]
		if !ok {
			// 未知玩家：以补丁携带的字段建档
			p = Player{ID: id, Facing: FacingSouth}
		}
		pp.applyTo(&p)
		w.players[id] = p
	}
}

// Detach 连接断开：保留镜像作为冻结画面，但本地玩家不再可用，直到下一次加入快照
func (w *WorldStateStore) Detach() {
	w.joined = false
}

// RemovePlayer 删除玩家，不存在时忽略
func (w *WorldStateStore) RemovePlayer(id string) {
	delete(w.players, id)
}

func (w *WorldStateStore) putPlayer(p Player) {
	if err := p.validate(); err != nil {
		Log.Warnf("skip player %q: %v", p.ID, err)
		return
	}
	w.players[p.ID] = p
}

func (w *WorldStateStore) putAvatar(a Avatar) bool {
	if err := a.validate(); err != nil {
		Log.Warnf("skip avatar %q: %v", a.Name, err)
		return false
	}
	w.avatars[a.Name] = &a
	return true
}

func (w *WorldStateStore) Joined() bool { return w.joined }
func (w *WorldStateStore) LocalID() string { return w.localID }

// LocalPlayer 返回本地玩家；未加入或快照中缺失时 ok 为 false
func (w *WorldStateStore) LocalPlayer() (Player, bool) {
	if !w.joined {
		return Player{}, false
	}
	return w.Player(w.localID)
}

func (w *WorldStateStore) Player(id string) (Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// Avatar 按名称查找头像，返回的指针即其身份
func (w *WorldStateStore) Avatar(name string) *Avatar {
	return w.avatars[name]
}

func (w *WorldStateStore) AvatarEpoch() uint64 { return w.avatarEpoch }

func (w *WorldStateStore) Len() int { return len(w.players) }

// Players 返回按 y、id 排序的副本，保证后绘制的玩家在下方
func (w *WorldStateStore) Players() []Player {
	out := make([]Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].ID < out[j].ID
	})
	return out
}
