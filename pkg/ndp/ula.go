package ndp

import "net/netip"

// IsULA reports whether addr belongs to the fd00::/8 range used by
// Matter/Thread meshes for unique local addressing.
//
// This is intentionally narrower than the full RFC 4193 range fc00::/7:
// border routers assign from the locally-generated fd half, and prefixes
// starting with 0xfc are not treated as ULA here.
func IsULA(addr netip.Addr) bool {
	return addr.Is6() && !addr.Is4In6() && addr.As16()[0] == 0xfd
}
