package vm

// Jet is an externally supplied unit of computation invoked by a dedicated
// node kind. The interpreter knows nothing about a jet beyond this contract:
// it reads its input from the active read frame and writes its output to the
// active write frame, exclusively through the machine's exported primitive
// operations, consuming exactly its declared source width and producing
// exactly its declared target width.
//
// env is the caller-supplied environment handed unmodified to every jet in
// the run (transaction context, oracle handles, and so on).
type Jet interface {
	// Name identifies the jet in fault and progress messages.
	Name() string

	// SourceType and TargetType declare the jet's type annotation, which
	// the program builder copies onto the jet's node.
	SourceType() *Type
	TargetType() *Type

	// Exec performs the computation against the machine's primitives.
	Exec(m *Machine, env any) error
}
