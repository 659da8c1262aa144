// Package geo resolves a request IP to an ISO country code when the edge
// did not provide one.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps an IP to an uppercase ISO 3166-1 alpha-2 country code.
// An empty result means unresolvable.
type Resolver interface {
	Country(ip string) string
}

// MaxMind reads a GeoLite2-Country database from disk.
type MaxMind struct {
	db *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mmdb %s: %w", path, err)
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Close() error { return m.db.Close() }

func (m *MaxMind) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	rec, err := m.db.Country(parsed)
	if err != nil {
		return ""
	}
	return strings.ToUpper(rec.Country.IsoCode)
}

// Noop always reports unresolvable; used when no database is configured
// and the trusted edge header is the only source.
type Noop struct{}

func (Noop) Country(string) string { return "" }
