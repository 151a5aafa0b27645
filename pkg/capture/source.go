// Package capture pulls Router Advertisements off a network interface and
// drives decoding, classification, dedup and route configuration for each
// one, strictly in arrival order.
package capture

import (
	"fmt"
	"net"

	"routelistener-go/pkg/config"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"github.com/rs/zerolog"
)

// raFilter matches ICMPv6 Router Advertisements only (type 134 at the
// start of the IPv6 payload).
const raFilter = "icmp6 and ip6[40] == 134"

// Source is a live pcap capture restricted to Router Advertisements on one
// interface.
type Source struct {
	iface  *net.Interface
	handle *pcap.Handle
	logger zerolog.Logger
}

// NewSource opens a capture handle on the configured interface. A missing
// interface or insufficient capture permissions are returned as errors so
// the caller can abort before the listener ever starts.
func NewSource(cfg *config.Config, logger zerolog.Logger) (*Source, error) {
	iface, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q not found: %w", cfg.Interface, err)
	}

	handle, err := pcap.OpenLive(cfg.Interface, cfg.Capture.Snaplen, cfg.Capture.Promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture on %q: %w", cfg.Interface, err)
	}

	if err := handle.SetBPFFilter(raFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set capture filter: %w", err)
	}

	return &Source{
		iface:  iface,
		handle: handle,
		logger: logger.With().Str("component", "capture").Str("iface", cfg.Interface).Logger(),
	}, nil
}

// Packets returns the stream of captured packets. The channel is closed
// when the handle is closed.
func (s *Source) Packets() <-chan gopacket.Packet {
	return gopacket.NewPacketSource(s.handle, s.handle.LinkType()).Packets()
}

// Close shuts down the capture handle, ending the packet stream.
func (s *Source) Close() {
	s.handle.Close()
}

// SendRouterSolicitation transmits an ICMPv6 Router Solicitation to the
// all-routers multicast group so routers answer with an advertisement
// immediately instead of waiting for their periodic timer.
func (s *Source) SendRouterSolicitation() error {
	if len(s.iface.HardwareAddr) != 6 {
		return fmt.Errorf("interface %q has no usable MAC address", s.iface.Name)
	}

	srcIP, err := linkLocalAddr(s.iface)
	if err != nil {
		return err
	}

	// 33:33:00:00:00:02 is the fixed MAC mapping of ff02::2.
	dstMAC := net.HardwareAddr{0x33, 0x33, 0x00, 0x00, 0x00, 0x02}

	eth := &layers.Ethernet{
		SrcMAC:       s.iface.HardwareAddr,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv6,
	}

	ipv6 := &layers.IPv6{
		Version:    6,
		HopLimit:   255,
		SrcIP:      srcIP,
		DstIP:      net.ParseIP("ff02::2"),
		NextHeader: layers.IPProtocolICMPv6,
	}

	icmpv6 := &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeRouterSolicitation, 0),
	}
	if err := icmpv6.SetNetworkLayerForChecksum(ipv6); err != nil {
		return fmt.Errorf("failed to set network layer for checksum: %w", err)
	}

	rs := &layers.ICMPv6RouterSolicitation{
		Options: layers.ICMPv6Options{
			{Type: layers.ICMPv6OptSourceAddress, Data: s.iface.HardwareAddr},
		},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, ipv6, icmpv6, rs); err != nil {
		return fmt.Errorf("failed to serialize router solicitation: %w", err)
	}

	if err := s.handle.WritePacketData(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send router solicitation: %w", err)
	}

	s.logger.Debug().Msg("Sent Router Solicitation")
	return nil
}

// linkLocalAddr finds the fe80::/10 address assigned to iface.
func linkLocalAddr(iface *net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses on %q: %w", iface.Name, err)
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipnet.IP.To4() == nil && ipnet.IP.IsLinkLocalUnicast() {
			return ipnet.IP, nil
		}
	}
	return nil, fmt.Errorf("no link-local address on %q", iface.Name)
}
