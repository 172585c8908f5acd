package testutil

import (
	"net/netip"

	"github.com/google/go-cmp/cmp"
)

// CmpOptions compares netip values by equality; cmp cannot descend into
// their unexported fields.
var CmpOptions = cmp.Options{
	cmp.Comparer(func(a, b netip.Addr) bool { return a == b }),
	cmp.Comparer(func(a, b netip.Prefix) bool { return a == b }),
}
