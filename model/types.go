package model

// ConstraintType uses the lp_solve numbering.
type ConstraintType int

const (
	Free ConstraintType = 0
	LE   ConstraintType = 1
	GE   ConstraintType = 2
	EQ   ConstraintType = 3
)

func (t ConstraintType) Valid() bool { return t >= Free && t <= EQ }

func (t ConstraintType) String() string {
	switch t {
	case Free:
		return "free"
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "unknown"
	}
}

type Kind int

const (
	Continuous Kind = iota
	Integer
	Binary
)

func (k Kind) Valid() bool { return k >= Continuous && k <= Binary }

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// BoundsMode selects how SetBounds treats bounds looser than the current ones.
type BoundsMode int

const (
	// BoundsAlways always applies the requested bounds.
	BoundsAlways BoundsMode = iota
	// BoundsRestrictive ignores a bound that would relax the current one.
	BoundsRestrictive
)

// DefaultInfinite is the magnitude from which a value counts as unbounded.
const DefaultInfinite = 1e30
