package vm

import "errors"

// Evaluation faults. All four are unrecoverable: each indicates a malformed
// program or a caller contract violation, never an expected runtime
// condition. They are distinct sentinels so an embedding layer can attribute
// aborts per cause with errors.Is.
var (
	// ErrStructuralType: a node's declared type shape disagrees with the
	// shape its semantics require (e.g. Case over a non-product source).
	ErrStructuralType = errors.New("structural type fault")

	// ErrStackUnderflow: a primitive frame operation ran with no active
	// frame on the relevant stack.
	ErrStackUnderflow = errors.New("frame stack underflow")

	// ErrFrameAccounting: frame bookkeeping violated — a cursor left its
	// window, or releasing a frame did not restore the allocation pointer
	// to that frame's own start.
	ErrFrameAccounting = errors.New("frame accounting fault")

	// ErrUnreachableNode: evaluation reached a Hidden or Fail node.
	ErrUnreachableNode = errors.New("unreachable node reached")
)
