// Package fallback provides a generic first-success-wins combinator over an
// ordered list of attempts. The report decoder uses it to walk its encoding
// fallback chain and the repair orchestrator uses it to walk its fence-pattern
// variants.
package fallback

import "errors"

// First applies try to each item in order and returns the first successful
// result together with the item that produced it. When every attempt fails,
// the joined errors are returned in attempt order.
func First[I, O any](items []I, try func(I) (O, error)) (O, I, error) {
	var (
		zeroOut O
		zeroIn  I
		errs    []error
	)
	for _, item := range items {
		out, err := try(item)
		if err == nil {
			return out, item, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("fallback: no attempts configured"))
	}
	return zeroOut, zeroIn, errors.Join(errs...)
}
