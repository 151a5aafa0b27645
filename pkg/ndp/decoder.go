// Package ndp decodes ICMPv6 Router Advertisements and classifies the
// prefixes they announce. It only understands the subset of RFC 4861
// needed to learn routes from Thread border routers: the fixed RA header,
// Prefix Information options and Route Information options. Everything
// else is carried through untouched.
package ndp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

const (
	// TypeRouterAdvertisement is the ICMPv6 message type for RAs.
	TypeRouterAdvertisement = 134

	// raHeaderLen covers type, code, checksum, hop limit, flags, router
	// lifetime, reachable time and retransmit timer.
	raHeaderLen = 16

	optPrefixInformation = 3
	optRouteInformation  = 24

	// A Prefix Information option is always four units of 8 bytes.
	prefixInfoLen = 32
)

// ErrNotRouterAdvertisement is returned when the ICMPv6 type field is not 134.
var ErrNotRouterAdvertisement = errors.New("packet is not a router advertisement")

// ErrShortHeader is returned when the packet ends before the fixed RA header does.
var ErrShortHeader = errors.New("truncated router advertisement header")

// TruncatedOptionError reports an option whose declared length is zero or
// runs past the end of the packet. Options decoded before the bad one are
// still delivered to the caller.
type TruncatedOptionError struct {
	Type      uint8
	Declared  int
	Remaining int
}

func (e *TruncatedOptionError) Error() string {
	return fmt.Sprintf("truncated option type %d: declared %d bytes, %d remaining", e.Type, e.Declared, e.Remaining)
}

// RouterAdvertisement is the decoded form of a single RA message. It lives
// for the duration of one packet's processing.
type RouterAdvertisement struct {
	Router         netip.Addr
	HopLimit       uint8
	Flags          uint8
	RouterLifetime uint16
	ReachableTime  uint32
	RetransTimer   uint32
	Options        []Option
}

// Option is one decoded neighbor discovery option. The concrete type is
// PrefixInformation, RouteInformation or RawOption.
type Option interface {
	optionType() uint8
}

// PrefixInformation is a type 3 option announcing an on-link or
// autoconfiguration prefix.
type PrefixInformation struct {
	PrefixLength      uint8
	OnLink            bool
	Autonomous        bool
	ValidLifetime     uint32
	PreferredLifetime uint32
	Prefix            netip.Addr
}

func (PrefixInformation) optionType() uint8 { return optPrefixInformation }

// RouteInformation is a type 24 option announcing a route reachable via the
// advertising router (RFC 4191).
type RouteInformation struct {
	PrefixLength  uint8
	Preference    uint8
	RouteLifetime uint32
	Prefix        netip.Addr
}

func (RouteInformation) optionType() uint8 { return optRouteInformation }

// RawOption records an option this decoder does not interpret. The payload
// is skipped, only type and length (in units of 8 bytes) are retained.
type RawOption struct {
	Type   uint8
	Length uint8
}

func (o RawOption) optionType() uint8 { return o.Type }

// Decode parses one raw ICMPv6 message, starting at the type byte, into a
// RouterAdvertisement. router is the source address of the enclosing IPv6
// packet.
//
// A truncated or zero-length option aborts decoding of the rest of the
// message, but the advertisement returned alongside the TruncatedOptionError
// still carries every option decoded before it. Unknown option types never
// fail the decode.
func Decode(router netip.Addr, msg []byte) (*RouterAdvertisement, error) {
	if len(msg) < 1 || msg[0] != TypeRouterAdvertisement {
		return nil, ErrNotRouterAdvertisement
	}
	if len(msg) < raHeaderLen {
		return nil, ErrShortHeader
	}

	ra := &RouterAdvertisement{
		Router:         router,
		HopLimit:       msg[4],
		Flags:          msg[5],
		RouterLifetime: binary.BigEndian.Uint16(msg[6:8]),
		ReachableTime:  binary.BigEndian.Uint32(msg[8:12]),
		RetransTimer:   binary.BigEndian.Uint32(msg[12:16]),
	}

	buf := msg[raHeaderLen:]
	for len(buf) > 0 {
		if len(buf) < 2 {
			return ra, &TruncatedOptionError{Type: buf[0], Declared: 2, Remaining: len(buf)}
		}
		typ := buf[0]
		length := int(buf[1]) * 8
		if length == 0 || length > len(buf) {
			return ra, &TruncatedOptionError{Type: typ, Declared: length, Remaining: len(buf)}
		}

		opt, err := decodeOption(typ, buf[:length])
		if err != nil {
			return ra, err
		}
		ra.Options = append(ra.Options, opt)
		buf = buf[length:]
	}

	return ra, nil
}

// decodeOption interprets a single option whose bounds have already been
// checked. opt includes the two-byte type/length header.
func decodeOption(typ uint8, opt []byte) (Option, error) {
	switch typ {
	case optPrefixInformation:
		if len(opt) != prefixInfoLen {
			return nil, &TruncatedOptionError{Type: typ, Declared: len(opt), Remaining: len(opt)}
		}
		plen := opt[2]
		if plen > 128 {
			// Nonsense prefix length from the sender. Keep the option
			// opaque rather than guessing at a mask.
			return RawOption{Type: typ, Length: uint8(len(opt) / 8)}, nil
		}
		return PrefixInformation{
			PrefixLength:      plen,
			OnLink:            opt[3]&0x80 != 0,
			Autonomous:        opt[3]&0x40 != 0,
			ValidLifetime:     binary.BigEndian.Uint32(opt[4:8]),
			PreferredLifetime: binary.BigEndian.Uint32(opt[8:12]),
			Prefix:            maskedPrefix(opt[16:32], plen),
		}, nil

	case optRouteInformation:
		// Length 8, 16 or 24 bytes: the prefix field is narrowed to 0, 8
		// or 16 bytes and zero-extended on decode.
		if len(opt) != 8 && len(opt) != 16 && len(opt) != 24 {
			return RawOption{Type: typ, Length: uint8(len(opt) / 8)}, nil
		}
		plen := opt[2]
		if plen > 128 {
			return RawOption{Type: typ, Length: uint8(len(opt) / 8)}, nil
		}
		var raw [16]byte
		copy(raw[:], opt[8:])
		return RouteInformation{
			PrefixLength:  plen,
			Preference:    opt[3] >> 3 & 0x3,
			RouteLifetime: binary.BigEndian.Uint32(opt[4:8]),
			Prefix:        maskedPrefix(raw[:], plen),
		}, nil

	default:
		return RawOption{Type: typ, Length: uint8(len(opt) / 8)}, nil
	}
}

// maskedPrefix builds an address from the 16 raw prefix bytes with every bit
// below plen cleared. Senders are not required to zero those bits and they
// must not leak into route comparisons.
func maskedPrefix(raw []byte, plen uint8) netip.Addr {
	var b [16]byte
	copy(b[:], raw)
	addr := netip.AddrFrom16(b)
	return netip.PrefixFrom(addr, int(plen)).Masked().Addr()
}
