package ignorelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker tells whether a sender must never be processed. Entries are
// either full addresses (noreply@example.com) or domains (example.com,
// which also covers its subdomains).
type Checker struct {
	addresses map[string]struct{}
	domains   []string
	logger    *zap.Logger
}

// NewChecker creates a new ignored-senders checker
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]struct{}),
		logger:    logger,
	}

	// Normalize entries (lowercase, no leading @)
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case strings.HasPrefix(entry, "@"):
			c.domains = append(c.domains, strings.TrimPrefix(entry, "@"))
		case strings.Contains(entry, "@"):
			c.addresses[entry] = struct{}{}
		default:
			c.domains = append(c.domains, entry)
		}
	}

	if (len(c.addresses) > 0 || len(c.domains) > 0) && logger != nil {
		logger.Info("Initialized ignored senders",
			zap.Int("addresses", len(c.addresses)),
			zap.Strings("domains", c.domains))
	}
	return c
}

// IsIgnored checks the sender address against the list
func (c *Checker) IsIgnored(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return false
	}

	if _, ok := c.addresses[address]; ok {
		c.debug("Sender is ignored", address)
		return true
	}

	// Extract domain from email address
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	domain := address[at+1:]

	for _, ignored := range c.domains {
		if domain == ignored || strings.HasSuffix(domain, "."+ignored) {
			c.debug("Sender domain is ignored", address)
			return true
		}
	}
	return false
}

func (c *Checker) debug(msg, address string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("email", address))
	}
}
