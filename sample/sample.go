/*
Package sample declares what training and evaluation require from the
units a tree routes.
*/
package sample

import "github.com/facekit/conifer/split"

/*
Sample is one unit routed through a tree: something that can answer
split tests with a scalar response and that carries the displacement
it votes for. Responses must be deterministic, and implementations
must support concurrent reads, since finished trees are evaluated from
many goroutines at once.
*/
type Sample interface {
	// EvalTest returns the scalar response of the sample to the test,
	// or an error if the test does not apply to it.
	EvalTest(t *split.Test) (float64, error)
	// Offset returns the displacement from the sample to the target it
	// was annotated with, as the regression objective of training.
	Offset() []float64
}
