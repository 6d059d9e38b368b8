package client

import "testing"

func TestCameraRecompute(t *testing.T) {
	tests := []struct {
		name   string
		x, y   float64
		vw, vh float64
		world  float64
		wantX  float64
		wantY  float64
	}{
		{"centered", 1000, 1000, 800, 600, 2048, 600, 700},
		{"top left corner", 10, 20, 800, 600, 2048, 0, 0},
		{"bottom right corner", 2040, 2040, 800, 600, 2048, 1248, 1448},
		{"viewport wider than world", 100, 100, 3000, 600, 2048, 0, 0},
		{"viewport larger than world", 500, 500, 4000, 4000, 2048, 0, 0},
		{"exact fit", 400, 300, 800, 600, 800, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorldStateStore()
			w.ApplyJoinSnapshot("p1", map[string]Player{"p1": player("p1", tt.x, tt.y)}, nil)
			c := NewCameraController(w, tt.world, tt.world)
			c.Recompute(tt.vw, tt.vh)
			x, y := c.Offset()
			if x != tt.wantX || y != tt.wantY {
				t.Fatalf("camera = (%v,%v), want (%v,%v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestCameraStaysWithinBounds(t *testing.T) {
	const world = 2048.0
	w := NewWorldStateStore()
	c := NewCameraController(w, world, world)
	for px := -100.0; px <= world+100; px += 173 {
		for _, vw := range []float64{320, 800, 1920, 2500} {
			vh := vw * 3 / 4
			w.ApplyJoinSnapshot("p1", map[string]Player{"p1": player("p1", px, world-px)}, nil)
			c.Recompute(vw, vh)
			x, y := c.Offset()
			if x < 0 || x > max(0, world-vw) {
				t.Fatalf("x=%v out of [0,%v] for px=%v vw=%v", x, max(0, world-vw), px, vw)
			}
			if y < 0 || y > max(0, world-vh) {
				t.Fatalf("y=%v out of [0,%v] for py=%v vh=%v", y, max(0, world-vh), world-px, vh)
			}
		}
	}
}

func TestCameraNoopBeforeJoin(t *testing.T) {
	w := NewWorldStateStore()
	c := NewCameraController(w, 2048, 2048)
	c.Recompute(800, 600)
	if x, y := c.Offset(); x != 0 || y != 0 {
		t.Fatalf("camera moved before join: (%v,%v)", x, y)
	}

	w.ApplyJoinSnapshot("p1", map[string]Player{"p1": player("p1", 1000, 1000)}, nil)
	c.Recompute(800, 600)
	w.RemovePlayer("p1")
	c.Recompute(200, 200)
	if x, y := c.Offset(); x != 600 || y != 700 {
		t.Fatalf("camera should keep last offset when local player is unknown, got (%v,%v)", x, y)
	}
}
