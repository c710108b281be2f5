package value

import "math"

// Traits records, for one dynamic-language Kind, the two capabilities
// tracked as explicit predicates rather than reflected method lookups:
// whether a value is picklable, and whether it has equality beyond
// identity.
type Traits struct {
	Picklable   bool
	HasEquality bool
}

// Comparator is a pluggable equality check. It returns applicable=false
// when it has no opinion about a or b (e.g. they are not the numeric-array
// kind it specializes in), letting the caller fall through to the next
// comparator or to host structural equality.
type Comparator func(a, b Value) (equal, applicable bool)

// Registry is the type-dispatch table consulted by IsPicklable and
// HasNonIdentityEquality, plus an ordered list of specialized comparators
// consulted before falling back to HostServices.StructuralEqual.
type Registry struct {
	traits      map[string]Traits
	comparators []Comparator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{traits: make(map[string]Traits)}
}

// Register records the traits for a dynamic-language Kind.
func (r *Registry) Register(kind string, t Traits) {
	r.traits[kind] = t
}

// RegisterComparator appends a specialized comparator, consulted in
// registration order ahead of host structural equality.
func (r *Registry) RegisterComparator(c Comparator) {
	r.comparators = append(r.comparators, c)
}

// IsPicklable reports whether v's kind is known and marked picklable.
// Unknown kinds are conservatively not picklable.
func (r *Registry) IsPicklable(v Value) bool {
	t, ok := r.traits[v.Kind()]
	return ok && t.Picklable
}

// HasNonIdentityEquality reports whether v's kind is known and marked as
// supporting non-identity equality. Unknown kinds conservatively do not.
func (r *Registry) HasNonIdentityEquality(v Value) bool {
	t, ok := r.traits[v.Kind()]
	return ok && t.HasEquality
}

// Equal compares a and b, trying each registered comparator in turn
// before falling back to host-level structural equality.
func (r *Registry) Equal(a, b Value, host HostServices) bool {
	for _, c := range r.comparators {
		if eq, applicable := c(a, b); applicable {
			return eq
		}
	}
	return host.StructuralEqual(a, b)
}

// AllClose returns a Comparator implementing a numeric "all close" rule:
// two NumericArray values of equal length are equal if every element
// pair is within tolerance (relative to the second operand's magnitude,
// absolute near zero). A NumericArray whose Floats() is nil is not a
// numeric array for this rule, and the comparator reports not applicable.
func AllClose(tolerance float64) Comparator {
	return func(a, b Value) (equal, applicable bool) {
		na, ok1 := a.(NumericArray)
		nb, ok2 := b.(NumericArray)
		if !ok1 || !ok2 {
			return false, false
		}
		fa, fb := na.Floats(), nb.Floats()
		if fa == nil || fb == nil {
			return false, false
		}
		if len(fa) != len(fb) {
			return false, true
		}
		for i := range fa {
			if math.Abs(fa[i]-fb[i]) > tolerance*(1+math.Abs(fb[i])) {
				return false, true
			}
		}
		return true, true
	}
}
