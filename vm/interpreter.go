package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lattice.vm")

// ---------------------------------------------------------------------------
// The interpreter loop
// ---------------------------------------------------------------------------

// The evaluator is deliberately iterative: deferred work lives on an
// explicit continuation stack instead of the Go call stack. The interleaving
// between administrative frame teardown and subterm evaluation is
// load-bearing (teardown continuations are pushed before the subterm that
// precedes them, so popping runs them in the right order), and a recursive
// formulation would also forbid the frame reuse this layout permits.

type contKind uint8

const (
	contGoto      contKind = iota // evaluate the node at index arg
	contMoveFrame                 // commit the active write frame to the read stack
	contDropFrame                 // release the active read frame
	contCopyFwd                   // copy arg bits read→write, then advance the read cursor past them
	contBack                      // retreat the read cursor by arg bits
)

type continuation struct {
	kind contKind
	arg  int // node index for contGoto, bit count for contCopyFwd/contBack
}

// progressInterval is how many dispatched nodes pass between progress
// signals. Purely observational.
const progressInterval = 1 << 26

// Run evaluates the machine's program and decodes the result value. The
// input frame must already be installed if the program's source type has
// nonzero width. env is handed unmodified to every jet.
//
// Any fault aborts the run with no partial result; the machine is dead
// afterwards either way.
func (m *Machine) Run(env any) (*Value, error) {
	root := m.prog.Root()
	if root.SourceType.BitWidth() > 0 && len(m.read) == 0 {
		return nil, fmt.Errorf("%w: no input frame installed for source type %s",
			ErrStackUnderflow, root.SourceType)
	}

	outputWidth := root.TargetType.BitWidth()
	if outputWidth > 0 {
		// The final output frame is allocated up front: every write
		// during evaluation lands in its final position.
		if err := m.allocateWriteFrame(outputWidth); err != nil {
			return nil, err
		}
	}

	if err := m.run(len(m.prog.Nodes)-1, env); err != nil {
		return nil, err
	}

	if outputWidth == 0 {
		return Unit(), nil
	}
	out, err := m.activeWrite()
	if err != nil {
		return nil, err
	}
	out.resetCursor()
	return m.decodeValue(out, root.TargetType)
}

func (m *Machine) run(ip int, env any) error {
	var stack []continuation
	var iters uint64

	for {
		iters++
		if iters%progressInterval == 0 {
			log.Infof("still executing: %d nodes dispatched, at [%d] %s",
				iters, ip, &m.prog.Nodes[ip])
		}

		if err := m.step(ip, env, &stack); err != nil {
			return fmt.Errorf("node %d (%s): %w", ip, &m.prog.Nodes[ip], err)
		}

		// Drain administrative continuations until the next node (or
		// the end of the run).
		next := -1
		for next < 0 {
			if len(stack) == 0 {
				return nil
			}
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			var err error
			switch c.kind {
			case contGoto:
				next = c.arg
			case contMoveFrame:
				err = m.commitActiveWriteFrame()
			case contDropFrame:
				err = m.releaseActiveReadFrame()
			case contCopyFwd:
				if err = m.copy(c.arg); err == nil {
					err = m.fwd(c.arg)
				}
			case contBack:
				err = m.back(c.arg)
			}
			if err != nil {
				return err
			}
		}
		ip = next
	}
}

// step performs one node's immediate effects and schedules its deferred
// work. Teardown continuations are pushed before subterm continuations, so
// the LIFO pop order runs subterms first.
func (m *Machine) step(ip int, env any, stack *[]continuation) error {
	node := &m.prog.Nodes[ip]
	push := func(c continuation) { *stack = append(*stack, c) }

	switch node.Kind {
	case NodeUnit:
		// Zero-width: no bits produced.

	case NodeIden:
		return m.copy(node.SourceType.BitWidth())

	case NodeInjL, NodeInjR:
		right := node.Kind == NodeInjR
		if node.TargetType.Kind != TypeSum {
			return fmt.Errorf("%w: injection into non-sum target %s",
				ErrStructuralType, node.TargetType)
		}
		arm := node.TargetType.Left
		if right {
			arm = node.TargetType.Right
		}
		if err := m.WriteBit(right); err != nil {
			return err
		}
		if err := m.skip(node.TargetType.BitWidth() - arm.BitWidth() - 1); err != nil {
			return err
		}
		push(continuation{contGoto, node.Left})

	case NodePair:
		push(continuation{contGoto, node.Right})
		push(continuation{contGoto, node.Left})

	case NodeComp:
		// Evaluate left into an intermediate frame, swing it to the
		// read stack, evaluate right off it, then tear it down.
		mid := m.prog.Nodes[node.Left].TargetType.BitWidth()
		if err := m.allocateWriteFrame(mid); err != nil {
			return err
		}
		push(continuation{contDropFrame, 0})
		push(continuation{contGoto, node.Right})
		push(continuation{contMoveFrame, 0})
		push(continuation{contGoto, node.Left})

	case NodeDisconnect:
		left := &m.prog.Nodes[node.Left]
		rightNode := &m.prog.Nodes[node.Right]
		leftSource := left.SourceType.BitWidth()
		if leftSource < 256 {
			return fmt.Errorf("%w: disconnect left source %s is narrower than a commitment",
				ErrStructuralType, left.SourceType)
		}
		// Fresh read frame: the right child's commitment digest,
		// followed by whatever input the disconnect itself received.
		if err := m.allocateWriteFrame(leftSource); err != nil {
			return err
		}
		if err := m.WriteBytes(rightNode.Commitment[:]); err != nil {
			return err
		}
		if err := m.copy(leftSource - 256); err != nil {
			return err
		}
		if err := m.commitActiveWriteFrame(); err != nil {
			return err
		}

		leftTarget := left.TargetType.BitWidth()
		if err := m.allocateWriteFrame(leftTarget); err != nil {
			return err
		}
		// Popped in reverse: run left, commit its output for reading,
		// forward the first component verbatim, run right over the
		// second, then drop both frames we created.
		push(continuation{contDropFrame, 0})
		push(continuation{contDropFrame, 0})
		push(continuation{contGoto, node.Right})
		push(continuation{contCopyFwd, leftTarget - rightNode.SourceType.BitWidth()})
		push(continuation{contMoveFrame, 0})
		push(continuation{contGoto, node.Left})

	case NodeTake:
		push(continuation{contGoto, node.Left})

	case NodeDrop:
		if node.SourceType.Kind != TypeProduct {
			return fmt.Errorf("%w: drop over non-product source %s",
				ErrStructuralType, node.SourceType)
		}
		firstWidth := node.SourceType.Left.BitWidth()
		if err := m.fwd(firstWidth); err != nil {
			return err
		}
		push(continuation{contBack, firstWidth})
		push(continuation{contGoto, node.Left})

	case NodeCase:
		if node.SourceType.Kind != TypeProduct || node.SourceType.Left.Kind != TypeSum {
			return fmt.Errorf("%w: case over source %s, need a product of a sum",
				ErrStructuralType, node.SourceType)
		}
		sum := node.SourceType.Left
		bit, err := m.peekBit()
		if err != nil {
			return err
		}
		// The sum region spans 1+max(arms) bits whichever arm is
		// live; skip the discriminant and padding so the cursor lands
		// on the arm, with the product's second component right after.
		arm, child := sum.Left, node.Left
		if bit {
			arm, child = sum.Right, node.Right
		}
		pad := sum.BitWidth() - arm.BitWidth()
		if err := m.fwd(pad); err != nil {
			return err
		}
		push(continuation{contBack, pad})
		push(continuation{contGoto, child})

	case NodeWitness:
		return m.writeValue(node.Witness, node.TargetType)

	case NodeHidden:
		return fmt.Errorf("%w: hidden subexpression %x was pruned at commitment time",
			ErrUnreachableNode, node.Commitment[:8])

	case NodeFail:
		return fmt.Errorf("%w: fail combinator on a statically unreachable path",
			ErrUnreachableNode)

	case NodeJet:
		if err := node.Jet.Exec(m, env); err != nil {
			return fmt.Errorf("jet %s: %w", node.Jet.Name(), err)
		}

	default:
		return fmt.Errorf("%w: unknown node kind %d", ErrStructuralType, node.Kind)
	}
	return nil
}
