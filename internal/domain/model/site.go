package model

import (
	"fmt"
	"strings"
)

// NodeID identifies one fixed sensing point.
type NodeID string

// Node identifiers of the default deployment.
const (
	NodeA NodeID = "A"
	NodeB NodeID = "B"
	NodeC NodeID = "C"
)

// ParseNodeID normalizes wire spellings such as "a", "node_a" or " NODE-B ".
func ParseNodeID(s string) NodeID {
	id := strings.ToUpper(strings.TrimSpace(s))
	for _, prefix := range []string{"NODE_", "NODE-", "NODE"} {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			id = id[len(prefix):]
			break
		}
	}
	return NodeID(id)
}

// Role tells the engine which signal a node feeds.
type Role string

// Node roles.
const (
	RoleEntry    Role = "entry"
	RoleCorridor Role = "corridor"
	RoleExit     Role = "exit"
)

// Point is a location in room metres.
type Point struct {
	X float64 `json:"x" koanf:"x"`
	Y float64 `json:"y" koanf:"y"`
}

// Rect is an axis-aligned area in room metres.
type Rect struct {
	MinX float64 `json:"min_x" koanf:"min_x"`
	MinY float64 `json:"min_y" koanf:"min_y"`
	MaxX float64 `json:"max_x" koanf:"max_x"`
	MaxY float64 `json:"max_y" koanf:"max_y"`
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Area returns width times height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Room is the monitored floor area, origin at the bottom-left corner.
type Room struct {
	Width  float64 `json:"width" koanf:"width"`
	Height float64 `json:"height" koanf:"height"`
}

// Center returns the middle of the room.
func (r Room) Center() Point { return Point{X: r.Width / 2, Y: r.Height / 2} }

// Clamp pulls a point back inside the room.
func (r Room) Clamp(p Point) Point {
	return Point{X: clamp(p.X, 0, r.Width), Y: clamp(p.Y, 0, r.Height)}
}

// Contains reports whether the rectangle lies inside the room.
func (r Room) Contains(rect Rect) bool {
	return rect.MinX >= 0 && rect.MinY >= 0 && rect.MaxX <= r.Width && rect.MaxY <= r.Height
}

// NodeSpec describes one node and the zone it watches. Microphone marks the
// nodes whose readings carry a sound level.
type NodeSpec struct {
	ID         NodeID `json:"id" koanf:"id"`
	Role       Role   `json:"role" koanf:"role"`
	Position   Point  `json:"position" koanf:"position"`
	Zone       Rect   `json:"zone" koanf:"zone"`
	Microphone bool   `json:"microphone" koanf:"microphone"`
}

// Site is the fixed deployment every component is built from. The node set
// never changes after construction.
type Site struct {
	Room   Room       `json:"room" koanf:"room"`
	Nodes  []NodeSpec `json:"nodes" koanf:"nodes"`
	Center Rect       `json:"center" koanf:"center"`
}

// DefaultSite returns the three-node layout of a 10x10 m hall: entry at the
// top left, corridor at the top right, exit door with a microphone at the bottom.
func DefaultSite() Site {
	const w, h = 10.0, 10.0
	return Site{
		Room: Room{Width: w, Height: h},
		Nodes: []NodeSpec{
			{ID: NodeA, Role: RoleEntry, Position: Point{X: 0, Y: h}, Zone: Rect{MinX: 0, MinY: h / 2, MaxX: w / 2, MaxY: h}},
			{ID: NodeB, Role: RoleCorridor, Position: Point{X: w, Y: h}, Zone: Rect{MinX: w / 2, MinY: h / 2, MaxX: w, MaxY: h}},
			{ID: NodeC, Role: RoleExit, Position: Point{X: w / 2, Y: 0}, Zone: Rect{MinX: w / 4, MinY: 0, MaxX: 3 * w / 4, MaxY: h / 2}, Microphone: true},
		},
		Center: Rect{MinX: w / 4, MinY: h / 4, MaxX: 3 * w / 4, MaxY: 3 * h / 4},
	}
}

// Validate checks the room, the node set and the role assignment.
func (s Site) Validate() error {
	if s.Room.Width <= 0 || s.Room.Height <= 0 {
		return fmt.Errorf("%w: room must have positive dimensions, got %vx%v", ErrInvalidConfig, s.Room.Width, s.Room.Height)
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("%w: site has no nodes", ErrInvalidConfig)
	}
	seen := make(map[NodeID]bool, len(s.Nodes))
	roles := make(map[Role]int)
	for _, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidConfig)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidConfig, n.ID)
		}
		seen[n.ID] = true
		switch n.Role {
		case RoleEntry, RoleCorridor, RoleExit:
			roles[n.Role]++
		default:
			return fmt.Errorf("%w: node %q has unknown role %q", ErrInvalidConfig, n.ID, n.Role)
		}
		if n.Zone.Area() <= 0 || !s.Room.Contains(n.Zone) {
			return fmt.Errorf("%w: node %q zone must be a non-empty rectangle inside the room", ErrInvalidConfig, n.ID)
		}
	}
	if roles[RoleEntry] != 1 || roles[RoleExit] != 1 {
		return fmt.Errorf("%w: site needs exactly one entry and one exit node", ErrInvalidConfig)
	}
	if s.Center.Area() <= 0 || !s.Room.Contains(s.Center) {
		return fmt.Errorf("%w: center zone must be a non-empty rectangle inside the room", ErrInvalidConfig)
	}
	return nil
}

// IDs returns the node identifiers in configuration order.
func (s Site) IDs() []NodeID {
	ids := make([]NodeID, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Node looks up a node by id.
func (s Site) Node(id NodeID) (NodeSpec, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// NodeByRole returns the first node with the given role.
func (s Site) NodeByRole(role Role) (NodeSpec, bool) {
	for _, n := range s.Nodes {
		if n.Role == role {
			return n, true
		}
	}
	return NodeSpec{}, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
