package research

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var blockedHosts = []string{
	"localhost",
	"localhost.localdomain",
	"metadata.google.internal",
}

// cgnat is 100.64.0.0/10, not covered by netip.Addr.IsPrivate
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Guard refuses URLs and connections that point at loopback, private,
// link-local or metadata addresses. Contacts choose the URLs the fetcher
// downloads, and the page text is sent back to them.
type Guard struct {
	// AllowPrivate disables the address checks. Tests against local
	// servers set it.
	AllowPrivate bool
}

// Check validates raw and every address its host resolves to
func (g *Guard) Check(ctx context.Context, raw string) (*url.URL, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return nil, err
	}
	if g == nil || g.AllowPrivate {
		return u, nil
	}

	host := strings.ToLower(u.Hostname())
	if err := validateIPv4Literal(host); err != nil {
		return nil, err
	}
	for _, blocked := range blockedHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return nil, fmt.Errorf("%w: host %s is not allowed", ErrInvalidURL, host)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return u, checkAddr(addr)
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve %s: %v", ErrInvalidURL, host, err)
	}
	for _, addr := range addrs {
		if err := checkAddr(addr); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// control is a net.Dialer Control hook. It runs on the address actually
// dialed, so redirects and rebinding DNS answers are checked too.
func (g *Guard) control(network, address string, _ syscall.RawConn) error {
	if g == nil || g.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: unexpected dial address %q", ErrInvalidURL, address)
	}
	return checkAddr(addr)
}

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if embedded, ok := embeddedIPv4(addr); ok {
		if err := checkAddr(embedded); err != nil {
			return fmt.Errorf("%w: %s embeds a blocked address", ErrInvalidURL, addr)
		}
	}
	switch {
	case addr.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrInvalidURL, addr)
	case addr.IsPrivate(), addr.Is4() && cgnat.Contains(addr):
		return fmt.Errorf("%w: private address %s", ErrInvalidURL, addr)
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address %s", ErrInvalidURL, addr)
	case addr.IsUnspecified(), addr.IsMulticast(), addr.IsInterfaceLocalMulticast():
		return fmt.Errorf("%w: address %s is not allowed", ErrInvalidURL, addr)
	}
	return nil
}

// embeddedIPv4 returns the IPv4 address inside a NAT64, 6to4 or Teredo address
func embeddedIPv4(addr netip.Addr) (netip.Addr, bool) {
	if !addr.Is6() {
		return netip.Addr{}, false
	}
	b := addr.As16()
	switch {
	case b[0] == 0x00 && b[1] == 0x64 && b[2] == 0xff && b[3] == 0x9b:
		return netip.AddrFrom4([4]byte{b[12], b[13], b[14], b[15]}), true
	case b[0] == 0x20 && b[1] == 0x02:
		return netip.AddrFrom4([4]byte{b[2], b[3], b[4], b[5]}), true
	case b[0] == 0x20 && b[1] == 0x01 && b[2] == 0x00 && b[3] == 0x00:
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], binary.BigEndian.Uint32(b[12:16])^0xFFFFFFFF)
		return netip.AddrFrom4(v), true
	}
	return netip.Addr{}, false
}

// validateIPv4Literal rejects octal, hex, short and packed IPv4 forms that
// some resolvers expand to internal addresses.
func validateIPv4Literal(host string) error {
	digits := 0
	for _, c := range host {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c != '.' && c != 'x':
			return nil
		}
	}
	if digits == 0 {
		return nil
	}
	if strings.Contains(host, "0x") {
		return fmt.Errorf("%w: hex IPv4 notation", ErrInvalidURL)
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return fmt.Errorf("%w: non-standard IPv4 notation", ErrInvalidURL)
	}
	for _, part := range parts {
		if part == "" || (len(part) > 1 && part[0] == '0') {
			return fmt.Errorf("%w: non-standard IPv4 notation", ErrInvalidURL)
		}
	}
	return nil
}
