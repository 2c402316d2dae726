package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"subforge/internal/logger"
)

var (
	mu            sync.RWMutex
	countryReader *geoip2.Reader
)

// Init loads the country MMDB. An empty path leaves lookups disabled.
func Init(countryPath string) error {
	if countryPath == "" {
		return nil
	}
	reader, err := geoip2.Open(countryPath)
	if err != nil {
		return fmt.Errorf("failed to open Country DB at %s: %w", countryPath, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if countryReader != nil {
		countryReader.Close()
	}
	countryReader = reader
	logger.Log.Debugf("GeoIP country database loaded from %s", countryPath)
	return nil
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return countryReader != nil
}

// CountryCode returns the upper-case ISO code of an IP literal. Host names
// are not resolved.
func CountryCode(host string) (string, bool) {
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return "", false
	}

	mu.RLock()
	defer mu.RUnlock()
	if countryReader == nil {
		return "", false
	}
	c, err := countryReader.Country(ip)
	if err != nil || c.Country.IsoCode == "" {
		return "", false
	}
	return strings.ToUpper(c.Country.IsoCode), true
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if countryReader != nil {
		countryReader.Close()
		countryReader = nil
	}
}
