package udp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// flag accepts 0/1, "0"/"1" or a JSON bool.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	switch s {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("pir %q: %w", s, ErrMalformed)
		}
		*f = v != 0
	}
	return nil
}

// Packet is the JSON body a sensing node sends.
type Packet struct {
	Node      string   `json:"node,omitempty"`
	ID        string   `json:"id,omitempty"`
	Dist      *float64 `json:"dist,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
	PIR       flag     `json:"pir"`
	WiFiCount int      `json:"wifi_count"`
	DB        *float64 `json:"db,omitempty"`
	RSSI      float64  `json:"rssi,omitempty"`
	Uptime    int64    `json:"uptime,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// Message is a decoded packet.
type Message struct {
	Reading model.Reading
	// Key identifies a retransmission. It is empty when the node sent neither
	// uptime nor timestamp.
	Key    string
	Status string
}

// Decoder turns datagrams into readings for a fixed node set.
type Decoder struct {
	nodes map[model.NodeID]bool
}

// NewDecoder accepts only the given nodes.
func NewDecoder(nodes []model.NodeID) *Decoder {
	d := &Decoder{nodes: make(map[model.NodeID]bool, len(nodes))}
	for _, id := range nodes {
		d.nodes[id] = true
	}
	return d
}

// Decode parses data and stamps the reading with receivedAt.
func (d *Decoder) Decode(data []byte, receivedAt time.Time) (Message, error) {
	var p Packet
	if err := json.Unmarshal(bytes.TrimSpace(data), &p); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw := p.Node
	if raw == "" {
		raw = p.ID
	}
	if raw == "" {
		return Message{}, ErrMissingNode
	}
	id := model.ParseNodeID(raw)
	if !d.nodes[id] {
		return Message{}, fmt.Errorf("%w: %q", model.ErrUnknownNode, raw)
	}
	dist := p.Dist
	if dist == nil {
		dist = p.Distance
	}
	if dist == nil {
		return Message{}, fmt.Errorf("%w: node %s", ErrMissingDistance, id)
	}

	r := model.Reading{
		Node:       id,
		DistanceCM: model.ClampDistance(*dist),
		Motion:     bool(p.PIR),
		WiFiCount:  max(p.WiFiCount, 0),
		RSSI:       p.RSSI,
		Uptime:     p.Uptime,
		Timestamp:  receivedAt,
	}
	if p.DB != nil {
		r.Sound = model.Sound{DB: *p.DB, Valid: true}
	}
	m := Message{Reading: r, Status: p.Status}
	if p.Uptime != 0 || p.Timestamp != 0 {
		m.Key = fmt.Sprintf("%s|%d|%d", id, p.Uptime, p.Timestamp)
	}
	return m, nil
}
