package graph

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
)

// ProcessingQueue wraps a list-based queue for Kahn's algorithm processing.
// It holds nodes that are ready to be processed (have in-degree of 0).
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// InitializeQueue creates a processing queue holding every node with
// in-degree 0, in node insertion order so the result is deterministic.
func (g *Graph) InitializeQueue(inDegree map[uint32]int) *ProcessingQueue {
	pq := NewProcessingQueue()
	for _, row := range g.Nodes {
		if inDegree[row] == 0 {
			pq.Enqueue(row)
		}
	}
	return pq
}

// Enqueue adds a node to the back of the queue.
func (pq *ProcessingQueue) Enqueue(row uint32) {
	pq.queue.PushBack(row)
}

// Dequeue removes and returns the node at the front of the queue.
// Returns 0 and false if queue is empty.
func (pq *ProcessingQueue) Dequeue() (uint32, bool) {
	if pq.queue.Len() == 0 {
		return 0, false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(uint32), true
}

// IsEmpty returns true if the queue has no nodes.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees computes the number of incoming edges for each node.
func (g *Graph) CalculateInDegrees() map[uint32]int {
	inDegree := make(map[uint32]int, len(g.Nodes))
	for _, row := range g.Nodes {
		inDegree[row] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// ErrCycleDetected is returned when types enclose each other.
var ErrCycleDetected = errors.New("cycle detected in type nesting graph")

// CycleInfo describes the rows that could not be ordered.
type CycleInfo struct {
	TotalNodes       int
	ProcessedNodes   int
	UnprocessedNodes []uint32
	CyclePath        []uint32 // e.g. [A, B, A]
}

// CycleError reports a nesting cycle.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in type nesting graph: %d of %d types could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)
	if len(e.Info.CyclePath) > 0 {
		parts := make([]string, len(e.Info.CyclePath))
		for i, row := range e.Info.CyclePath {
			parts[i] = fmt.Sprintf("TypeDef[%d]", row)
		}
		msg += fmt.Sprintf(" (%s)", strings.Join(parts, " -> "))
	}
	return msg
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// TopologicalSort returns rows with every enclosing type before the types
// nested in it. Returns a *CycleError if the nesting relation has a cycle.
func (g *Graph) TopologicalSort() ([]uint32, error) {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	result := make([]uint32, 0, len(g.Nodes))
	for !queue.IsEmpty() {
		row, _ := queue.Dequeue()
		result = append(result, row)

		for _, child := range g.GetChildren(row) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}

	if len(result) == len(g.Nodes) {
		return result, nil
	}

	processed := make(map[uint32]bool, len(result))
	for _, row := range result {
		processed[row] = true
	}
	info := &CycleInfo{
		TotalNodes:     len(g.Nodes),
		ProcessedNodes: len(result),
	}
	for _, row := range g.Nodes {
		if !processed[row] {
			info.UnprocessedNodes = append(info.UnprocessedNodes, row)
		}
	}
	info.CyclePath = g.findCyclePath(info.UnprocessedNodes[0], processed)
	return nil, &CycleError{Info: info}
}

// findCyclePath walks enclosing links from start until a row repeats.
func (g *Graph) findCyclePath(start uint32, processed map[uint32]bool) []uint32 {
	seen := make(map[uint32]int)
	var path []uint32
	row := start
	for {
		if at, ok := seen[row]; ok {
			return append(path[at:], row)
		}
		seen[row] = len(path)
		path = append(path, row)

		next, ok := g.unprocessedParent(row, processed)
		if !ok {
			return nil
		}
		row = next
	}
}

func (g *Graph) unprocessedParent(row uint32, processed map[uint32]bool) (uint32, bool) {
	for _, p := range g.Parents[row] {
		if !processed[p] {
			return p, true
		}
	}
	return 0, false
}
