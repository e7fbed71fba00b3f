package ip

import (
	"fmt"
	"net"
	"sort"

	sharedErrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
)

// Allocator hands out tunnel addresses from a fixed subnet. It holds no
// allocation state of its own: the caller supplies the currently leased set,
// so availability is always derived from the registry's records.
type Allocator struct {
	cidr     string
	network  *net.IPNet
	reserved map[string]bool

	// Usable host range, network and broadcast addresses excluded
	first net.IP
	last  net.IP
}

// NewAllocator creates an allocator for the given subnet. Reserved addresses
// (the relay's own tunnel address, gateways) are never leased and must lie
// inside the subnet.
func NewAllocator(cidr string, reserved []string) (*Allocator, error) {
	if cidr == "" {
		return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidCIDR, "subnet CIDR cannot be empty", false, nil)
	}

	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidCIDR, fmt.Sprintf("invalid subnet CIDR: %v", err), false, err).WithMetadata("cidr", cidr)
	}
	if network.IP.To4() == nil {
		return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidCIDR, "subnet must be IPv4", false, nil).WithMetadata("cidr", cidr)
	}

	maskSize, _ := network.Mask.Size()
	if maskSize > 30 {
		return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidCIDR, "subnet too small, prefix must be /30 or wider", false, nil).WithMetadata("cidr", cidr)
	}

	reservedSet := make(map[string]bool, len(reserved))
	for _, addr := range reserved {
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() == nil {
			return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidIPAddress, "reserved address is not a valid IPv4 address", false, nil).WithMetadata("address", addr)
		}
		if !network.Contains(ip) {
			return nil, sharedErrors.NewIPError(sharedErrors.ErrCodeInvalidIPAddress, "reserved address is outside the subnet", false, nil).WithMetadata("address", addr).WithMetadata("cidr", cidr)
		}
		reservedSet[ip.To4().String()] = true
	}

	// First usable host is the address after the network address
	first := make(net.IP, len(network.IP.To4()))
	copy(first, network.IP.To4())
	incrementIP(first)

	// Last usable host is the address before broadcast
	last := make(net.IP, len(network.IP.To4()))
	copy(last, network.IP.To4())
	mask := network.Mask
	for i := range last {
		last[i] |= ^mask[i]
	}
	last[len(last)-1]--

	return &Allocator{
		cidr:     network.String(),
		network:  network,
		reserved: reservedSet,
		first:    first,
		last:     last,
	}, nil
}

// Allocate returns the lowest-valued usable address that is neither reserved
// nor in the leased set. The scan order makes allocation deterministic for a
// given leased set.
func (a *Allocator) Allocate(leased []string) (string, error) {
	leasedSet := make(map[string]bool, len(leased))
	for _, addr := range leased {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			leasedSet[ip.To4().String()] = true
		}
	}

	current := make(net.IP, len(a.first))
	copy(current, a.first)

	for {
		addr := current.String()
		if !a.reserved[addr] && !leasedSet[addr] {
			return addr, nil
		}

		incrementIP(current)

		if !a.network.Contains(current) || ipGreaterThan(current, a.last) {
			break
		}
	}

	return "", sharedErrors.NewIPError(sharedErrors.ErrCodeSubnetExhausted, "subnet has no available addresses", false, nil).WithMetadata("subnet_cidr", a.cidr)
}

// Capacity returns how many addresses the pool can lease: usable hosts minus
// the reserved set.
func (a *Allocator) Capacity() int {
	maskSize, bits := a.network.Mask.Size()
	usable := (1 << uint(bits-maskSize)) - 2
	return usable - len(a.reserved)
}

// Contains reports whether an address is a usable, non-reserved member of the
// managed subnet.
func (a *Allocator) Contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return false
	}
	ip = ip.To4()

	if !a.network.Contains(ip) || a.reserved[ip.String()] {
		return false
	}
	if ipGreaterThan(a.first, ip) || ipGreaterThan(ip, a.last) {
		return false
	}
	return true
}

// Subnet returns the normalized CIDR of the managed subnet
func (a *Allocator) Subnet() string {
	return a.cidr
}

// Reserved returns the reserved addresses in sorted order
func (a *Allocator) Reserved() []string {
	addrs := make([]string, 0, len(a.reserved))
	for addr := range a.reserved {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// incrementIP advances an IPv4 address by one, carrying across octets
func incrementIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

// ipGreaterThan checks if ip1 > ip2
func ipGreaterThan(ip1, ip2 net.IP) bool {
	ip1 = ip1.To4()
	ip2 = ip2.To4()
	for i := 0; i < len(ip1); i++ {
		if ip1[i] > ip2[i] {
			return true
		} else if ip1[i] < ip2[i] {
			return false
		}
	}
	return false
}
