// Package sched builds and executes the per-step task dependency graph:
// one Sort and one Self task per cell and one Pair task per neighbor
// relation, dispatched to a fixed worker pool with atomic wait-count
// bookkeeping instead of fine-grained locking.
package sched

import (
	"sync/atomic"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/space"
)

// Kind of a task.
type Kind int

const (
	// SortTask rebuilds one cell's sorted-neighbor lists.
	SortTask Kind = iota

	// SelfTask evaluates interactions among one cell's own particles
	// and its boundary faces.
	SelfTask

	// PairTask evaluates interactions between two neighboring cells.
	PairTask
)

func (k Kind) String() string {
	switch k {
	case SortTask:
		return "sort"
	case SelfTask:
		return "self"
	case PairTask:
		return "pair"
	}
	return "unknown"
}

// Task is one schedulable unit of per-cell or per-cell-pair work. A
// task becomes runnable when its wait count reaches zero; completing it
// decrements the wait counts of everything on its unlock list.
type Task struct {
	Kind Kind

	// CI is the owned cell; CJ the partner cell for pair tasks (-1
	// otherwise). Shift is the periodic image offset of CJ and Dir the
	// lattice direction index.
	CI, CJ int32
	Dir    int
	Shift  geom.Vec3

	wait    atomic.Int32
	initial int32
	unlock  []*Task
}

// Graph is the static per-topology task graph. Wait counts are reset
// before every step; the task set itself changes only when the cell
// topology does.
type Graph struct {
	Tasks []Task

	// initially runnable task indices (wait count zero after reset).
	roots []*Task
}

// BuildGraph constructs the dependency graph for a grid: Sort and Self
// per cell, Pair per neighbor relation. Each Pair waits on the Sort
// tasks of both its cells.
func BuildGraph(s *space.Space) *Graph {
	nc := len(s.Cells)
	g := &Graph{Tasks: make([]Task, 0, 2*nc+len(s.Pairs))}

	for ci := 0; ci < nc; ci++ {
		g.Tasks = append(g.Tasks, Task{Kind: SortTask, CI: int32(ci), CJ: -1})
	}
	for ci := 0; ci < nc; ci++ {
		g.Tasks = append(g.Tasks, Task{Kind: SelfTask, CI: int32(ci), CJ: -1})
	}
	sorts := g.Tasks[:nc]

	for _, pr := range s.Pairs {
		g.Tasks = append(g.Tasks, Task{
			Kind:  PairTask,
			CI:    pr.I,
			CJ:    pr.J,
			Dir:   pr.Dir,
			Shift: pr.Shift,
		})
		t := &g.Tasks[len(g.Tasks)-1]
		t.initial = 2
		sorts[pr.I].unlock = append(sorts[pr.I].unlock, t)
		sorts[pr.J].unlock = append(sorts[pr.J].unlock, t)
	}

	for i := range g.Tasks {
		if g.Tasks[i].initial == 0 {
			g.roots = append(g.roots, &g.Tasks[i])
		}
	}
	return g
}

// Reset restores all wait counts for a fresh step.
func (g *Graph) Reset() {
	for i := range g.Tasks {
		g.Tasks[i].wait.Store(g.Tasks[i].initial)
	}
}

// Counts returns the number of sort, self and pair tasks.
func (g *Graph) Counts() (sorts, selfs, pairs int) {
	for i := range g.Tasks {
		switch g.Tasks[i].Kind {
		case SortTask:
			sorts++
		case SelfTask:
			selfs++
		case PairTask:
			pairs++
		}
	}
	return
}
