// Package engine runs one execution window end to end: it validates accounts,
// subscribes each (symbol, threshold) pair once, tracks swings until the
// scheduled instant, then submits a bracket per account whose pair swung.
package engine

import "context"

// Service is what the control surface sees of a run.
type Service interface {
	Status() Status
}

// Runner executes a run to completion.
type Runner interface {
	Service
	Run(ctx context.Context) (*Report, error)
}

var _ Runner = (*Coordinator)(nil)
