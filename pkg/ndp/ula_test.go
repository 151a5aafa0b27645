package ndp

import (
	"net/netip"
	"testing"
)

func TestIsULA(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"fd00:1234:5678::", true},
		{"fdff:ffff:ffff:ffff::", true},
		// fc00::/8 is deliberately outside this system's ULA notion.
		{"fc00::", false},
		{"2001:db8::", false},
		{"fe80::1", false},
		{"::", false},
		{"::ffff:192.0.2.1", false},
	}

	for _, tc := range cases {
		if got := IsULA(netip.MustParseAddr(tc.addr)); got != tc.want {
			t.Errorf("IsULA(%s) = %t, want %t", tc.addr, got, tc.want)
		}
	}
}
