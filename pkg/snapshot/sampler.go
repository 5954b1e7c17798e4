// SPDX-License-Identifier: GPL-3.0-or-later

package snapshot

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/panics"
)

// Sample holds externally measured scalars. Nil fields were not measured.
type Sample struct {
	PlayersOnline *int64
	TPS           []float64
	MSPTAvg       *float64
	MSPTP95       *float64
	Source        string
}

// Sampler is invoked once per tick. A failed sampler returns the zero Sample.
// A sampler may also return measured fields together with an error when only
// part of it failed; callers use the non-nil fields and report the error.
type Sampler interface {
	Sample() (Sample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() (Sample, error)

func (f SamplerFunc) Sample() (Sample, error) { return f() }

// Fallback returns a sampler that takes every field the primary measured and
// fills the rest from the fallback. Either sampler may be nil. A panic in
// either one counts as its error; errors are returned along with whatever the
// other sampler measured.
func Fallback(primary, fallback Sampler) Sampler {
	return SamplerFunc(func() (Sample, error) {
		base, baseErr := safeSample(fallback)
		if primary == nil {
			return base, baseErr
		}
		top, topErr := safeSample(primary)
		if fallback == nil {
			return top, topErr
		}

		switch {
		case baseErr != nil && topErr != nil:
			return Sample{}, errors.Join(topErr, baseErr)
		case topErr != nil:
			return base, fmt.Errorf("primary sampler: %w", topErr)
		case baseErr != nil:
			return top, fmt.Errorf("fallback sampler: %w", baseErr)
		}

		if top.PlayersOnline != nil {
			base.PlayersOnline = top.PlayersOnline
		}
		if top.TPS != nil {
			base.TPS = slices.Clone(top.TPS)
		}
		if top.MSPTAvg != nil {
			base.MSPTAvg = top.MSPTAvg
		}
		if top.MSPTP95 != nil {
			base.MSPTP95 = top.MSPTP95
		}
		if top.Source != "" {
			base.Source = top.Source
		}
		return base, nil
	})
}

// safeSample calls s, turning a panic into an error. A nil sampler measures nothing.
func safeSample(s Sampler) (Sample, error) {
	if s == nil {
		return Sample{}, nil
	}

	var (
		smp Sample
		err error
		pc  panics.Catcher
	)
	pc.Try(func() { smp, err = s.Sample() })

	if rec := pc.Recovered(); rec != nil {
		return Sample{}, rec.AsError()
	}
	return smp, err
}
