package classifier

import (
	"bufio"
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/pterm/pterm"
)

// IPCategory classifies a remote address against known crawler IP ranges.
type IPCategory string

const (
	CategoryApplebot    IPCategory = "applebot"
	CategoryBingbot     IPCategory = "bingbot"
	CategoryDuckduckbot IPCategory = "duckduckbot"
	CategoryFacebookbot IPCategory = "facebookbot"
	CategoryGooglebot   IPCategory = "googlebot"
	CategoryTwitterbot  IPCategory = "twitterbot"
	CategoryUnknown     IPCategory = "unknown"
)

// IsBot reports whether the category denotes a known crawler. Only UNKNOWN
// is non-bot.
func (c IPCategory) IsBot() bool {
	return c != CategoryUnknown
}

// categoryScanOrder is the fixed priority in which range lists are tested;
// the first containing list wins.
var categoryScanOrder = []IPCategory{
	CategoryApplebot,
	CategoryBingbot,
	CategoryDuckduckbot,
	CategoryFacebookbot,
	CategoryGooglebot,
	CategoryTwitterbot,
}

// prefixFile is the JSON range-list shape published by the crawler owners.
type prefixFile struct {
	Prefixes []struct {
		IPv4Prefix string `json:"ipv4Prefix"`
		IPv6Prefix string `json:"ipv6Prefix"`
	} `json:"prefixes"`
}

// IPCategorizer loads and caches static crawler network-range lists from a
// directory, one file per category, either `<category>.ips` (plain CIDR
// lines) or `<category>.json` (prefix objects).
type IPCategorizer struct {
	dir    string
	logger *pterm.Logger
	mu     sync.RWMutex
	cache  map[IPCategory][]netip.Prefix
}

// NewIPCategorizer creates a categorizer reading range lists from dir.
func NewIPCategorizer(dir string, logger *pterm.Logger) *IPCategorizer {
	return &IPCategorizer{
		dir:    dir,
		logger: logger,
		cache:  make(map[IPCategory][]netip.Prefix),
	}
}

// Categorize returns the first category whose ranges contain the address,
// or UNKNOWN. Unparseable or empty addresses are UNKNOWN.
func (z *IPCategorizer) Categorize(remoteAddr string) IPCategory {
	if remoteAddr == "" {
		return CategoryUnknown
	}

	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return CategoryUnknown
	}
	addr = addr.Unmap()

	for _, category := range categoryScanOrder {
		for _, prefix := range z.networks(category) {
			// Contains is false across address families, so a v4 address
			// never matches a v6 prefix and vice versa.
			if prefix.Contains(addr) {
				return category
			}
		}
	}

	return CategoryUnknown
}

func (z *IPCategorizer) networks(category IPCategory) []netip.Prefix {
	z.mu.RLock()
	cached, ok := z.cache[category]
	z.mu.RUnlock()
	if ok {
		return cached
	}

	prefixes := z.load(category)

	z.mu.Lock()
	z.cache[category] = prefixes
	z.mu.Unlock()

	return prefixes
}

func (z *IPCategorizer) load(category IPCategory) []netip.Prefix {
	if raw, err := os.ReadFile(filepath.Join(z.dir, string(category)+".ips")); err == nil {
		return z.parseLines(category, raw)
	}

	raw, err := os.ReadFile(filepath.Join(z.dir, string(category)+".json"))
	if err != nil {
		if !os.IsNotExist(err) {
			z.logger.Warn("Failed to read IP range list",
				z.logger.Args("category", category, "error", err))
		}
		return []netip.Prefix{}
	}

	var file prefixFile
	if err := json.Unmarshal(raw, &file); err != nil {
		z.logger.Warn("Malformed IP range list",
			z.logger.Args("category", category, "error", err))
		return []netip.Prefix{}
	}

	prefixes := make([]netip.Prefix, 0, len(file.Prefixes))
	for _, p := range file.Prefixes {
		for _, raw := range []string{p.IPv4Prefix, p.IPv6Prefix} {
			if raw == "" {
				continue
			}
			if prefix, err := parsePrefix(raw); err == nil {
				prefixes = append(prefixes, prefix)
			} else {
				z.logger.Warn("Skipping invalid prefix",
					z.logger.Args("category", category, "prefix", raw, "error", err))
			}
		}
	}

	z.logger.Debug("Loaded IP range list",
		z.logger.Args("category", category, "prefixes", len(prefixes)))

	return prefixes
}

func (z *IPCategorizer) parseLines(category IPCategory, raw []byte) []netip.Prefix {
	prefixes := []netip.Prefix{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, err := parsePrefix(line)
		if err != nil {
			z.logger.Warn("Skipping invalid CIDR line",
				z.logger.Args("category", category, "line", line, "error", err))
			continue
		}
		prefixes = append(prefixes, prefix)
	}

	return prefixes
}

// parsePrefix accepts both CIDR notation and bare addresses, treating a
// bare address as a single-host prefix.
func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		return netip.ParsePrefix(raw)
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
