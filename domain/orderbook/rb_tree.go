package orderbook

import (
	"manifest/domain/wire"
)

// Node is one 80-byte block of the red-black tree:
//
//	[left:4][right:4][parent:4][color:1][payload type:1][pad:2][order:64]
//
// Child and parent references are byte offsets into the dynamic region.
type Node struct {
	Offset      uint32
	Left        uint32
	Right       uint32
	Parent      uint32
	Color       uint8
	PayloadType uint8
	Order       RestingOrder
}

// DecodeNode reads the block starting at offset.
func DecodeNode(region []byte, offset uint32) (Node, error) {
	const op = "decode tree node"
	b, err := wire.Window(op, region, int(offset), NodeSize)
	if err != nil {
		return Node{}, err
	}

	r := wire.NewReader(op, b[:nodeOrderOffset])
	n := Node{Offset: offset}
	n.Left = r.U32()
	n.Right = r.U32()
	n.Parent = r.U32()
	n.Color = r.U8()
	n.PayloadType = r.U8()
	if err := r.Err(); err != nil {
		return Node{}, err
	}

	n.Order, err = decodeOrder(b[nodeOrderOffset:])
	if err != nil {
		return Node{}, err
	}
	n.Order.Offset = offset
	return n, nil
}

// Result is the outcome of walking one tree.
type Result struct {
	// Orders holds live orders in ascending tree order, at most limit of them.
	Orders []RestingOrder
	// TotalVisited counts every node decoded, regardless of filter or limit.
	TotalVisited int
	// Faults lists subtrees that were skipped.
	Faults []error
}

// Traverse walks the tree rooted at root in order.
//
// A node is recorded when it has a non-zero size, is not expired at
// currentSlot, and fewer than limit orders were recorded so far. A reference
// that is out of bounds or already visited is recorded as a traversal fault
// and its subtree skipped; the rest of the tree is still walked. The walk
// visits at most len(region)/NodeSize nodes.
func Traverse(region []byte, root uint32, currentSlot uint64, limit int) Result {
	const op = "traverse order tree"

	var res Result
	if root == NIL {
		return res
	}

	maxNodes := len(region) / NodeSize
	visited := make(map[uint32]struct{})
	stack := make([]Node, 0, 32)

	fault := func(err error) {
		res.Faults = append(res.Faults, err)
	}

	cur := root
	for {
		for cur != NIL {
			if _, seen := visited[cur]; seen {
				fault(wire.Traversalf(op, "node %d reached twice", cur))
				break
			}
			if len(visited) >= maxNodes {
				fault(wire.Traversalf(op, "visit cap %d reached at node %d", maxNodes, cur))
				break
			}
			n, err := DecodeNode(region, cur)
			if err != nil {
				fault(wire.Traversalf(op, "node %d: %v", cur, err))
				break
			}
			visited[cur] = struct{}{}
			res.TotalVisited++
			stack = append(stack, n)
			cur = n.Left
		}

		if len(stack) == 0 {
			return res
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(res.Orders) < limit && n.Order.Live(currentSlot) {
			res.Orders = append(res.Orders, n.Order)
		}
		cur = n.Right
	}
}
