// Package identity derives the stable machine identifier the agent registers with.
//
// The identifier is the hardware address of one network interface, formatted
// as six lowercase colon-separated hex octets. Virtualized hosts can share
// addresses, so the value is stable per host but not globally unique.
package identity

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
)

// FallbackID is returned when no usable hardware address exists.
const FallbackID = "00:00:00:00:00:00"

const hardwareAddrLen = 6

// InterfaceSource lists network interfaces. net.Interfaces in production.
type InterfaceSource func() ([]net.Interface, error)

// Provider computes the machine ID once and returns the same value afterwards.
type Provider struct {
	source   InterfaceSource
	override string

	once sync.Once
	id   string
}

// NewProvider returns a provider backed by the host's network interfaces.
// A non-empty override pins the identity instead; it must pass ParseOverride.
func NewProvider(override string) *Provider {
	return &Provider{source: net.Interfaces, override: override}
}

// ParseOverride checks that s is a 6-byte hardware address and returns it in
// the same form derived identifiers use.
func ParseOverride(s string) (string, error) {
	addr, err := net.ParseMAC(s)
	if err != nil {
		return "", err
	}
	if len(addr) != hardwareAddrLen {
		return "", fmt.Errorf("machine id %q must have %d octets, got %d", s, hardwareAddrLen, len(addr))
	}
	return Format(addr), nil
}

// NewProviderWithSource returns a provider reading interfaces from source.
func NewProviderWithSource(source InterfaceSource) *Provider {
	return &Provider{source: source}
}

// MachineID returns the machine identifier. It never fails.
func (p *Provider) MachineID() string {
	p.once.Do(func() {
		if p.override != "" {
			id, err := ParseOverride(p.override)
			if err == nil {
				p.id = id
				slog.Info("machine_id_override", "machine_id", p.id)
				return
			}
			slog.Warn("machine_id_override_invalid", "machine_id", p.override, "error", err)
		}
		p.id = derive(p.source)
		slog.Info("machine_id_derived", "machine_id", p.id)
	})
	return p.id
}

// Format renders a 6-byte hardware address. Anything else yields FallbackID.
func Format(addr net.HardwareAddr) string {
	if len(addr) != hardwareAddrLen {
		return FallbackID
	}
	return addr.String()
}

func derive(source InterfaceSource) string {
	if source == nil {
		return FallbackID
	}
	ifaces, err := source()
	if err != nil {
		slog.Warn("interface_listing_failed", "error", err)
		return FallbackID
	}

	candidates := make([]net.Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != hardwareAddrLen || isZero(iface.HardwareAddr) {
			continue
		}
		candidates = append(candidates, iface)
	}
	if len(candidates) == 0 {
		slog.Warn("no_hardware_address", "fallback", FallbackID)
		return FallbackID
	}

	// Burned-in addresses first, then by name, so the choice survives
	// interface index reshuffles across reboots.
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := isLocallyAdministered(candidates[i].HardwareAddr), isLocallyAdministered(candidates[j].HardwareAddr)
		if li != lj {
			return !li
		}
		return candidates[i].Name < candidates[j].Name
	})
	return Format(candidates[0].HardwareAddr)
}

func isZero(addr net.HardwareAddr) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}

func isLocallyAdministered(addr net.HardwareAddr) bool {
	return len(addr) > 0 && addr[0]&0x02 != 0
}
