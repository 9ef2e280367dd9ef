// Package circuitid extracts the 32-bit Tor circuit identifier carried in
// the low 4 bytes of an IPv6-formatted header value.
package circuitid

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

// Decode parses header (expected to be an IPv6 textual address, e.g.
// "fc00:dead:beef:4dad::12d") and returns the big-endian uint32 formed by
// its last 4 octets. A final group of 5 to 8 hex digits (e.g.
// "::1:02030405") is also accepted and read as those low 32 bits.
func Decode(header string) (uint32, error) {
	if header == "" {
		return 0, fmt.Errorf("circuit id header is missing")
	}
	addr, err := netip.ParseAddr(header)
	if err != nil {
		if i := strings.LastIndexByte(header, ':'); i >= 0 && len(header)-i-1 > 4 && len(header)-i-1 <= 8 {
			group := strings.Repeat("0", 8-(len(header)-i-1)) + header[i+1:]
			addr, err = netip.ParseAddr(header[:i+1] + group[:4] + ":" + group[4:])
		}
	}
	if err != nil || !addr.Is6() {
		return 0, fmt.Errorf("circuit id header %q is not a valid IPv6 address", header)
	}
	octets := addr.As16()
	return binary.BigEndian.Uint32(octets[12:16]), nil
}
