package fields

import "fmt"

// BitSub names one sub-field of a bit-packed integer. Declaration
// order is bit order, most significant group first.
type BitSub struct {
	Name  string
	Width uint
}

// BitsWidth sums the widths of subs.
func BitsWidth(subs []BitSub) uint {
	var total uint
	for _, s := range subs {
		total += s.Width
	}
	return total
}

// bitPosition returns the shift and mask for the named sub-field
// within a parent of totalBits bits.
func bitPosition(totalBits uint, subs []BitSub, name string) (shift uint, mask uint64, ok bool) {
	consumed := uint(0)
	for _, s := range subs {
		consumed += s.Width
		if s.Name == name {
			shift = totalBits - consumed
			mask = (uint64(1)<<s.Width - 1) << shift
			return shift, mask, true
		}
	}
	return 0, 0, false
}

// ExtractBits reads the named sub-field from parent.
func ExtractBits(parent uint64, totalBits uint, subs []BitSub, name string) (uint64, error) {
	shift, mask, ok := bitPosition(totalBits, subs, name)
	if !ok {
		return 0, fmt.Errorf("%w: no bit sub-field %q", ErrValue, name)
	}
	return (parent & mask) >> shift, nil
}

// InsertBits writes v into the named sub-field of parent without
// disturbing sibling bits.
func InsertBits(parent uint64, totalBits uint, subs []BitSub, name string, v uint64) (uint64, error) {
	shift, mask, ok := bitPosition(totalBits, subs, name)
	if !ok {
		return 0, fmt.Errorf("%w: no bit sub-field %q", ErrValue, name)
	}
	if v<<shift & ^mask != 0 {
		return 0, fmt.Errorf("%w: %d exceeds sub-field %q width", ErrValue, v, name)
	}
	return parent&^mask | v<<shift, nil
}
