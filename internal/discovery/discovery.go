// Package discovery locates a Hue bridge on the local network.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// ServiceName is the mDNS service advertised by Hue bridges
const ServiceName = "_hue._tcp"

// DefaultWindow is how long discovery listens for responses
const DefaultWindow = 15 * time.Second

// ErrNotFound is returned when no bridge answered within the listen window
var ErrNotFound = errors.New("no hue bridge found")

// QueryFunc runs one mDNS query until params.Timeout or ctx ends; mdns.QueryContext in production
type QueryFunc func(ctx context.Context, params *mdns.QueryParam) error

// CloudFunc asks the Philips discovery endpoint for bridges
type CloudFunc func(ctx context.Context) ([]huego.Bridge, error)

// Locator finds the first bridge that answers an mDNS query
type Locator struct {
	window      time.Duration
	disableIPv6 bool
	query       QueryFunc
	cloud       CloudFunc
}

// Option configures a Locator
type Option func(*Locator)

// WithWindow sets the listen window
func WithWindow(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithoutIPv6 restricts the query to IPv4
func WithoutIPv6() Option {
	return func(l *Locator) {
		l.disableIPv6 = true
	}
}

// WithQuery replaces the mDNS query implementation
func WithQuery(q QueryFunc) Option {
	return func(l *Locator) {
		l.query = q
	}
}

// WithCloudFallback asks the cloud endpoint when mDNS finds nothing.
// A nil fn uses huego's N-UPnP discovery.
func WithCloudFallback(fn CloudFunc) Option {
	return func(l *Locator) {
		if fn == nil {
			fn = huego.DiscoverAllContext
		}
		l.cloud = fn
	}
}

// New creates a Locator
func New(opts ...Option) *Locator {
	l := &Locator{
		window: DefaultWindow,
		query:  mdns.QueryContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover returns the address of the first bridge that answers within the
// listen window. It does not retry; callers may call it again.
func (l *Locator) Discover(ctx context.Context) (net.IP, error) {
	ip, err := l.discoverMDNS(ctx)
	if err == nil || !errors.Is(err, ErrNotFound) || l.cloud == nil {
		return ip, err
	}

	log.Info().Msg("No bridge answered mDNS, trying cloud discovery")
	return l.discoverCloud(ctx)
}

func (l *Locator) discoverMDNS(ctx context.Context) (net.IP, error) {
	// Never closed: the query may still hold it after we return early.
	entries := make(chan *mdns.ServiceEntry, 16)

	params := mdns.DefaultParams(ServiceName)
	params.Entries = entries
	params.Timeout = l.window
	params.DisableIPv6 = l.disableIPv6

	// Stops the query once we have an answer or the caller gives up
	queryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- l.query(queryCtx, params)
	}()

	log.Debug().
		Str("service", ServiceName).
		Dur("window", l.window).
		Msg("Querying mDNS for bridges")

	for {
		select {
		case entry := <-entries:
			if ip := entryAddr(entry); ip != nil {
				log.Info().
					Str("address", ip.String()).
					Str("name", entry.Name).
					Msg("Bridge discovered via mDNS")
				return ip, nil
			}
		case err := <-done:
			if ip := drain(entries); ip != nil {
				return ip, nil
			}
			if err != nil {
				return nil, fmt.Errorf("mDNS query failed: %w", err)
			}
			// A query that returns early still fails only once the window is over
			if remaining := l.window - time.Since(start); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, ErrNotFound
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// drain returns the first usable address already queued in entries
func drain(entries <-chan *mdns.ServiceEntry) net.IP {
	for {
		select {
		case entry := <-entries:
			if ip := entryAddr(entry); ip != nil {
				return ip
			}
		default:
			return nil
		}
	}
}

// entryAddr picks the address carried by an entry for the Hue service
func entryAddr(entry *mdns.ServiceEntry) net.IP {
	if entry == nil {
		return nil
	}
	if entry.Name != "" && !strings.Contains(entry.Name, ServiceName) {
		return nil
	}
	if entry.AddrV4 != nil {
		return entry.AddrV4
	}
	if entry.AddrV6 != nil {
		return entry.AddrV6
	}
	return nil
}

func (l *Locator) discoverCloud(ctx context.Context) (net.IP, error) {
	bridges, err := l.cloud(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud discovery failed: %w", err)
	}

	for _, b := range bridges {
		if ip := net.ParseIP(b.Host); ip != nil {
			log.Info().
				Str("address", ip.String()).
				Str("bridge_id", b.ID).
				Msg("Bridge discovered via cloud")
			return ip, nil
		}
	}

	return nil, ErrNotFound
}
