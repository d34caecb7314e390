package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements Browser and Resolver using zeroconf.
//
// Browsing emits service instance names; the most recent zeroconf entry
// per instance is cached so Lookup can serve directory queries without a
// second network round trip.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	entries map[string]*zeroconf.ServiceEntry
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{
		config:  config,
		entries: make(map[string]*zeroconf.ServiceEntry),
	}
}

// Browse starts browsing for cast services. Every announcement (new or
// refreshed) emits the service instance name on the returned channel.
// Entries whose advertisement disappears from all interfaces are evicted
// from the lookup cache.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan string, error) {
	b.mu.Lock()
	browseCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	out := make(chan string)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				b.mu.Lock()
				b.entries[entry.Instance] = entry
				b.mu.Unlock()
				select {
				case out <- entry.Instance:
				case <-browseCtx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if entry == nil {
					continue
				}
				b.mu.Lock()
				delete(b.entries, entry.Instance)
				b.mu.Unlock()

			case <-browseCtx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(browseCtx, ServiceTypeCast, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// Stop stops all active browsing.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// Lookup resolves a service instance name from the browse cache.
func (b *MDNSBrowser) Lookup(serviceName string) (CastTXT, string, int, error) {
	b.mu.Lock()
	entry, ok := b.entries[serviceName]
	b.mu.Unlock()

	if !ok {
		return CastTXT{}, "", 0, ErrNotFound
	}

	txt, err := DecodeCastTXT(entry.Text)
	if err != nil {
		return CastTXT{}, "", 0, err
	}
	return txt, entryHost(entry), int(entry.Port), nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryHost picks the control address for an entry: IPv4 preferred, then
// IPv6, then the advertised hostname.
func entryHost(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0].String()
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0].String()
	}
	return entry.HostName
}

// Ensure MDNSBrowser implements Browser and Resolver.
var (
	_ Browser  = (*MDNSBrowser)(nil)
	_ Resolver = (*MDNSBrowser)(nil)
)
