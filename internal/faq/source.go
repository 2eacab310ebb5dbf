// Package faq answers shop policy questions (warranty, delivery, repairs)
// from a configurable knowledge source.
package faq

import "context"

// Source looks up the FAQ snippet relevant to a question. An empty answer
// with a nil error means "nothing relevant", which is not a failure.
type Source interface {
	Lookup(ctx context.Context, question string) (string, error)
}
