package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures an MDNSBrowser.
type BrowserConfig struct {
	// Interface restricts browsing to a single network interface.
	// Empty means all interfaces.
	Interface string
}

// MDNSBrowser discovers TORQBUS bridges via mDNS.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	return &MDNSBrowser{
		config: config,
	}, nil
}

// BrowseBridges searches for bridges on the local network.
// Services are aggregated by instance name - addresses from multiple interfaces
// are combined into a single entry. The channel is closed when ctx is done.
func (b *MDNSBrowser) BrowseBridges(ctx context.Context) (<-chan *BridgeService, error) {
	out := make(chan *BridgeService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	// Process entries with aggregation
	go func() {
		defer close(out)

		// Track services by instance name, aggregating addresses
		services := make(map[string]*BridgeService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := b.entryToBridge(entry)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					// Merge addresses into existing entry
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				} else {
					// New service - store and emit
					services[svc.InstanceName] = svc
					select {
					case out <- svc:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				// Remove addresses that came from this interface
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start browsing in background
	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeBridge, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindBridge browses until a bridge matching name is found or the timeout
// expires. An empty name matches the first bridge seen. Matching is by
// bridge name (TXT "nm") or full instance name.
func (b *MDNSBrowser) FindBridge(ctx context.Context, name string, timeout time.Duration) (*BridgeService, error) {
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := b.BrowseBridges(browseCtx)
	if err != nil {
		return nil, err
	}

	for svc := range found {
		if name == "" || svc.Name == name || svc.InstanceName == name {
			return svc, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Addr returns a dialable host:port for the bridge, preferring a resolved
// IP address over the hostname.
func (s *BridgeService) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	if strings.Contains(host, ":") {
		// IPv6 literal
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToBridge converts a zeroconf entry to BridgeService.
// Entries with unparseable TXT records are dropped.
func (b *MDNSBrowser) entryToBridge(entry *zeroconf.ServiceEntry) *BridgeService {
	txt := StringsToTXTRecords(entry.Text)
	info, err := DecodeBridgeTXT(txt)
	if err != nil {
		return nil
	}

	// Collect addresses
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &BridgeService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		BridgeInfo:   *info,
	}
}

// mergeAddresses merges new addresses into existing, deduplicating.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes addresses from a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
