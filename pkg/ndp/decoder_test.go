package ndp

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"
)

// raMessage builds a raw ICMPv6 RA message from the given option bytes.
func raMessage(options ...[]byte) []byte {
	msg := make([]byte, 16)
	msg[0] = TypeRouterAdvertisement
	msg[4] = 64 // hop limit
	binary.BigEndian.PutUint16(msg[6:8], 1800)
	for _, opt := range options {
		msg = append(msg, opt...)
	}
	return msg
}

// prefixInfoOption builds a type 3 option for the given prefix bytes.
func prefixInfoOption(prefix netip.Addr, plen uint8, flags uint8) []byte {
	opt := make([]byte, 32)
	opt[0] = 3
	opt[1] = 4
	opt[2] = plen
	opt[3] = flags
	binary.BigEndian.PutUint32(opt[4:8], 2592000)
	binary.BigEndian.PutUint32(opt[8:12], 604800)
	raw := prefix.As16()
	copy(opt[16:32], raw[:])
	return opt
}

var router = netip.MustParseAddr("fe80::1")

func TestDecodePrefixInformation(t *testing.T) {
	msg := raMessage(prefixInfoOption(netip.MustParseAddr("fd00:1234:5678::"), 64, 0xc0))

	ra, err := Decode(router, msg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ra.Router != router {
		t.Errorf("Router = %s, want %s", ra.Router, router)
	}
	if ra.HopLimit != 64 {
		t.Errorf("HopLimit = %d, want 64", ra.HopLimit)
	}
	if ra.RouterLifetime != 1800 {
		t.Errorf("RouterLifetime = %d, want 1800", ra.RouterLifetime)
	}
	if len(ra.Options) != 1 {
		t.Fatalf("got %d options, want 1", len(ra.Options))
	}

	pi, ok := ra.Options[0].(PrefixInformation)
	if !ok {
		t.Fatalf("option is %T, want PrefixInformation", ra.Options[0])
	}
	if pi.Prefix != netip.MustParseAddr("fd00:1234:5678::") {
		t.Errorf("Prefix = %s, want fd00:1234:5678::", pi.Prefix)
	}
	if pi.PrefixLength != 64 {
		t.Errorf("PrefixLength = %d, want 64", pi.PrefixLength)
	}
	if !pi.OnLink || !pi.Autonomous {
		t.Errorf("flags = onlink:%t autonomous:%t, want both set", pi.OnLink, pi.Autonomous)
	}
	if pi.ValidLifetime != 2592000 {
		t.Errorf("ValidLifetime = %d, want 2592000", pi.ValidLifetime)
	}
	if pi.PreferredLifetime != 604800 {
		t.Errorf("PreferredLifetime = %d, want 604800", pi.PreferredLifetime)
	}
}

func TestDecodeMasksPrefixBits(t *testing.T) {
	// Senders are allowed to leave garbage below the prefix length.
	dirty := netip.MustParseAddr("fd00:1234:5678:0:dead:beef:cafe:1")
	msg := raMessage(prefixInfoOption(dirty, 64, 0x80))

	ra, err := Decode(router, msg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	pi := ra.Options[0].(PrefixInformation)
	want := netip.MustParseAddr("fd00:1234:5678::")
	if pi.Prefix != want {
		t.Errorf("Prefix = %s, want masked %s", pi.Prefix, want)
	}
}

func TestDecodeNotRouterAdvertisement(t *testing.T) {
	msg := raMessage()
	msg[0] = 133 // Router Solicitation

	if _, err := Decode(router, msg); !errors.Is(err, ErrNotRouterAdvertisement) {
		t.Fatalf("err = %v, want ErrNotRouterAdvertisement", err)
	}
	if _, err := Decode(router, nil); !errors.Is(err, ErrNotRouterAdvertisement) {
		t.Fatalf("err = %v for empty packet, want ErrNotRouterAdvertisement", err)
	}
}

func TestDecodeShortHeader(t *testing.T) {
	msg := raMessage()[:10]
	if _, err := Decode(router, msg); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("err = %v, want ErrShortHeader", err)
	}
}

func TestDecodeZeroLengthOptionKeepsEarlierOptions(t *testing.T) {
	good := prefixInfoOption(netip.MustParseAddr("fd00:1::"), 64, 0x80)
	bad := []byte{3, 0, 0, 0, 0, 0, 0, 0} // declared length 0

	ra, err := Decode(router, raMessage(good, bad))

	var truncated *TruncatedOptionError
	if !errors.As(err, &truncated) {
		t.Fatalf("err = %v, want TruncatedOptionError", err)
	}
	if truncated.Declared != 0 {
		t.Errorf("Declared = %d, want 0", truncated.Declared)
	}
	if len(ra.Options) != 1 {
		t.Fatalf("got %d options, want the one decoded before the bad option", len(ra.Options))
	}
	if _, ok := ra.Options[0].(PrefixInformation); !ok {
		t.Errorf("surviving option is %T, want PrefixInformation", ra.Options[0])
	}
}

func TestDecodeTruncatedOption(t *testing.T) {
	good := prefixInfoOption(netip.MustParseAddr("fd00:2::"), 64, 0x80)
	// Declares four units (32 bytes) but only 8 bytes follow.
	bad := []byte{3, 4, 64, 0, 0, 0, 0, 0}

	ra, err := Decode(router, raMessage(good, bad))

	var truncated *TruncatedOptionError
	if !errors.As(err, &truncated) {
		t.Fatalf("err = %v, want TruncatedOptionError", err)
	}
	if truncated.Declared != 32 || truncated.Remaining != 8 {
		t.Errorf("Declared/Remaining = %d/%d, want 32/8", truncated.Declared, truncated.Remaining)
	}
	if len(ra.Options) != 1 {
		t.Fatalf("got %d options, want 1", len(ra.Options))
	}
}

func TestDecodeSkipsUnknownOptions(t *testing.T) {
	// Source link-layer address option, one unit.
	slla := []byte{1, 1, 0x02, 0x00, 0x00, 0xca, 0xfe, 0x01}
	pio := prefixInfoOption(netip.MustParseAddr("fd00:3::"), 64, 0x80)

	ra, err := Decode(router, raMessage(slla, pio))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(ra.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(ra.Options))
	}

	raw, ok := ra.Options[0].(RawOption)
	if !ok {
		t.Fatalf("first option is %T, want RawOption", ra.Options[0])
	}
	if raw.Type != 1 || raw.Length != 1 {
		t.Errorf("RawOption = %+v, want type 1 length 1", raw)
	}
	if _, ok := ra.Options[1].(PrefixInformation); !ok {
		t.Errorf("second option is %T, want PrefixInformation", ra.Options[1])
	}
}

func routeInfoOption(units uint8, plen uint8, prefix []byte) []byte {
	opt := make([]byte, int(units)*8)
	opt[0] = 24
	opt[1] = units
	opt[2] = plen
	binary.BigEndian.PutUint32(opt[4:8], 3600)
	copy(opt[8:], prefix)
	return opt
}

func TestDecodeRouteInformationEncodings(t *testing.T) {
	full := netip.MustParseAddr("fd11:2233:4455:6677::").As16()

	cases := []struct {
		name  string
		units uint8
		plen  uint8
		bytes []byte
		want  netip.Addr
	}{
		{"no prefix bytes", 1, 0, nil, netip.MustParseAddr("::")},
		{"eight prefix bytes", 2, 64, full[:8], netip.MustParseAddr("fd11:2233:4455:6677::")},
		{"sixteen prefix bytes", 3, 64, full[:], netip.MustParseAddr("fd11:2233:4455:6677::")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ra, err := Decode(router, raMessage(routeInfoOption(tc.units, tc.plen, tc.bytes)))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(ra.Options) != 1 {
				t.Fatalf("got %d options, want 1", len(ra.Options))
			}
			ri, ok := ra.Options[0].(RouteInformation)
			if !ok {
				t.Fatalf("option is %T, want RouteInformation", ra.Options[0])
			}
			if ri.Prefix != tc.want {
				t.Errorf("Prefix = %s, want %s", ri.Prefix, tc.want)
			}
			if ri.PrefixLength != tc.plen {
				t.Errorf("PrefixLength = %d, want %d", ri.PrefixLength, tc.plen)
			}
			if ri.RouteLifetime != 3600 {
				t.Errorf("RouteLifetime = %d, want 3600", ri.RouteLifetime)
			}
		})
	}
}

func TestDecodeBogusPrefixLengthBecomesRaw(t *testing.T) {
	opt := prefixInfoOption(netip.MustParseAddr("fd00:4::"), 64, 0x80)
	opt[2] = 200 // out of range

	ra, err := Decode(router, raMessage(opt))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(ra.Options) != 1 {
		t.Fatalf("got %d options, want 1", len(ra.Options))
	}
	if _, ok := ra.Options[0].(RawOption); !ok {
		t.Errorf("option is %T, want RawOption for bogus prefix length", ra.Options[0])
	}
}
