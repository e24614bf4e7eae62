package lu

import "math"

// Update replaces basis position p by the column whose FTRAN image is alpha
// (alpha = B^-1 a_q, indexed by basis position). The change is stored as a
// product form eta, a rank-one correction of B^-1.
func (f *Factor) Update(alpha []float64, p int) error {
	if !f.valid {
		return ErrNotFactored
	}
	if len(alpha) != f.m || p < 0 || p >= f.m {
		return ErrDimension
	}
	piv := alpha[p]
	big := 0.0
	for _, a := range alpha {
		big = math.Max(big, math.Abs(a))
	}
	if math.Abs(piv) <= f.opts.SingularTol || math.Abs(piv) < f.opts.SingularTol*big {
		return ErrUnstableUpdate
	}

	eta := updateEta{p: p, pivot: piv}
	for i, a := range alpha {
		if i == p || math.Abs(a) <= f.opts.DropTol {
			continue
		}
		eta.alpha = append(eta.alpha, entry{i, a})
	}
	f.etas = append(f.etas, eta)
	f.etaGrowth = math.Max(f.etaGrowth, big/math.Abs(piv))
	return nil
}

// NeedsRefactor reports whether the update policy asks for a fresh factorization.
func (f *Factor) NeedsRefactor() bool {
	if !f.valid {
		return true
	}
	if f.opts.MaxUpdates > 0 && len(f.etas) >= f.opts.MaxUpdates {
		return true
	}
	return f.etaGrowth > f.opts.GrowthLimit || f.Growth() > f.opts.GrowthLimit
}

// Growth is max|U| / max|B| at the last factorization.
func (f *Factor) Growth() float64 {
	if f.maxB == 0 {
		return 0
	}
	return f.maxU / f.maxB
}

type Stats struct {
	LNNZ      int
	UNNZ      int
	EtaNNZ    int
	Updates   int
	Growth    float64
	EtaGrowth float64
}

func (f *Factor) Stats() Stats {
	s := Stats{
		Updates:   len(f.etas),
		Growth:    f.Growth(),
		EtaGrowth: f.etaGrowth,
	}
	for _, l := range f.lEtas {
		s.LNNZ += len(l)
	}
	for _, u := range f.uRows {
		s.UNNZ += len(u) + 1
	}
	for _, e := range f.etas {
		s.EtaNNZ += len(e.alpha) + 1
	}
	return s
}
