package fixture

// Kind is the delta operation kind.
type Kind uint8

const (
	// Absolute replaces the source set with the delta.
	Absolute Kind = iota

	// Additive unions the delta into the source set.
	Additive

	// Subtractive removes the delta members from the source set.
	Subtractive
)

// String returns the lowercase name of the kind, used as a metrics label.
func (k Kind) String() string {
	switch k {
	case Absolute:
		return "absolute"
	case Additive:
		return "additive"
	case Subtractive:
		return "subtractive"
	default:
		return "unknown"
	}
}

// Marker returns the command-line marker placed after "-E".
func (k Kind) Marker() string {
	switch k {
	case Additive:
		return "+"
	case Subtractive:
		return "-"
	default:
		return ""
	}
}

// selectKind picks the kind for the next attempt. The first step is always
// Absolute and consumes no randomness; later steps are Absolute with
// probability absProb, otherwise Subtractive or Additive on a fair coin.
func selectKind(r *RNG, step int, absProb float64) Kind {
	if step == 0 || r.Float64() < absProb {
		return Absolute
	}
	if r.Coin() {
		return Subtractive
	}
	return Additive
}
