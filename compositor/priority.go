package compositor

import (
	"sort"

	"github.com/dudk/montage"
	"github.com/dudk/montage/log"
)

// Keys of nodes taking part in priority scheduling.
const (
	// PriorityFrameKey is declared by nodes that can resolve frames ahead
	// of time. Compositor writes the relative position it wants next.
	PriorityFrameKey = "priority_frame"
	// TrackItemInKey receives the in point of the clip a node belongs to.
	TrackItemInKey = "track_item_in"
	// TrackItemDurationKey receives the duration of the clip a node
	// belongs to.
	TrackItemDurationKey = "track_item_duration"
	// InKey is the in point attribute of offset nodes.
	InKey = "in"
)

// priorityNode tracks requests issued to a single node.
type priorityNode struct {
	node      montage.Node
	in, out   int
	requested int
}

func (n *priorityNode) setInOut(in, out int) {
	if n.out-n.in != out-in {
		n.requested = 0
	}
	n.in, n.out = in, out
}

func (n *priorityNode) duration() int {
	return n.out - n.in
}

func (n *priorityNode) complete() bool {
	return n.requested >= n.duration()
}

func (n *priorityNode) inRange(p int) bool {
	return p >= n.in && p < n.out
}

// request asks the node to resolve its next frame.
func (n *priorityNode) request(l log.Logger) {
	if n.complete() {
		return
	}
	l.Debugf("requesting %d from %s (%d to %d)", n.requested, n.node.URI(), n.in, n.out)
	n.node.Attributes().SetInt(PriorityFrameKey, n.requested)
	n.requested++
}

// priorityList indexes priority nodes of the connected sub-graphs by their
// in point.
type priorityList struct {
	nodes map[string]*priorityNode
	ins   []int
	index map[int][]*priorityNode
}

func newPriorityList() *priorityList {
	return &priorityList{
		nodes: make(map[string]*priorityNode),
		index: make(map[int][]*priorityNode),
	}
}

// register walks the slots of c and rebuilds the index. Returns in points
// of connected slots.
func (l *priorityList) register(c *Compositor) []float64 {
	nodes := make(map[string]*priorityNode)
	var events []float64
	for i := 0; i < c.SlotCount(); i++ {
		slot := c.Slot(i)
		if slot == nil {
			continue
		}
		in, out := 0, slot.Frames()
		var found []montage.Node
		analyse(slot, &found, &in, nil)
		for _, n := range found {
			if _, ok := nodes[n.UID()]; ok {
				c.Log().Warnf("duplicate priority node %s", n.URI())
				continue
			}
			pn, ok := l.nodes[n.UID()]
			if !ok {
				pn = &priorityNode{node: n}
			}
			pn.setInOut(in, out)
			nodes[n.UID()] = pn
		}
		propagate(slot, in, out)
		events = append(events, float64(in))
	}
	l.nodes = nodes

	l.index = make(map[int][]*priorityNode)
	l.ins = l.ins[:0]
	uids := make([]string, 0, len(nodes))
	for uid := range nodes {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		pn := nodes[uid]
		if _, ok := l.index[pn.in]; !ok {
			l.ins = append(l.ins, pn.in)
		}
		l.index[pn.in] = append(l.index[pn.in], pn)
		c.Log().Debugf("priority %s (%d to %d)", pn.node.URI(), pn.in, pn.out)
	}
	sort.Ints(l.ins)
	return events
}

// seek issues requests to the incomplete nodes nearest to p.
func (l *priorityList) seek(p int, lg log.Logger) {
	var nearest []*priorityNode
	for i, in := range l.ins {
		for _, pn := range l.index[in] {
			if !pn.complete() && (pn.inRange(p) || in > p) {
				nearest = append(nearest, pn)
			}
		}
		if i+1 == len(l.ins) || (len(nearest) > 0 && !anyInRange(l.index[l.ins[i+1]], p)) {
			break
		}
	}
	for _, pn := range nearest {
		pn.request(lg)
	}
}

func anyInRange(nodes []*priorityNode, p int) bool {
	for _, pn := range nodes {
		if pn.inRange(p) {
			return true
		}
	}
	return false
}

// analyse collects nodes declaring the priority frame attribute and the
// in point of the clip. Threaded and nested compositing sub-graphs are
// not entered. If placed is not nil, it's set when an offset is found.
func analyse(n montage.Node, found *[]montage.Node, in *int, placed *bool) {
	if n == nil {
		return
	}
	switch n.URI() {
	case "threader", "compositor":
		return
	case "offset":
		*in = n.Attributes().IntOr(InKey, 0)
		if placed != nil {
			*placed = true
		}
	}
	if found != nil && n.Attributes().Valid(PriorityFrameKey) {
		*found = append(*found, n)
	}
	for i := 0; i < n.SlotCount(); i++ {
		analyse(n.Slot(i), found, in, placed)
	}
}

// propagate writes clip in point and duration to the nodes below n that
// declare them.
func propagate(n montage.Node, in, out int) {
	for i := 0; i < n.SlotCount(); i++ {
		slot := n.Slot(i)
		if slot == nil {
			continue
		}
		attrs := slot.Attributes()
		if attrs.Valid(TrackItemInKey) {
			attrs.SetInt(TrackItemInKey, in)
		}
		if attrs.Valid(TrackItemDurationKey) {
			attrs.SetInt(TrackItemDurationKey, out-in)
		}
		propagate(slot, in, out)
	}
}
