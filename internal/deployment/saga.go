package deployment

import "context"

type compensation struct {
	stage Stage
	undo  func(ctx context.Context) error
}

// saga is a stack of undo actions, one pushed after each successful step.
type saga struct {
	stack []compensation
}

func (s *saga) push(stage Stage, undo func(ctx context.Context) error) {
	s.stack = append(s.stack, compensation{stage: stage, undo: undo})
}

func (s *saga) len() int { return len(s.stack) }

// unwind runs every compensation in reverse order. Failures are reported
// through report and never stop the remaining compensations.
func (s *saga) unwind(ctx context.Context, report func(stage Stage, err error)) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		c := s.stack[i]
		report(c.stage, c.undo(ctx))
	}
	s.stack = nil
}
