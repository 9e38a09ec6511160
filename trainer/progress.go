package trainer

import (
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
)

// each runs body for 0..n-1, with a progress bar when progress is set, and
// stops at the first error.
func each(n int, desc string, progress bool, body func(i int) error) error {
	if !progress {
		for i := 0; i < n; i++ {
			if err := body(i); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	terr := tqdm.With(iterators.Interval(0, n), desc, func(v interface{}) (brk bool) {
		err = body(v.(int))
		return err != nil
	})
	if err != nil {
		return err
	}
	return terr
}
