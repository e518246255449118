package replies

import (
	"regexp"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Reply is the latest classified inbound message for a phone number.
type Reply struct {
	Confirmed bool
	Declined  bool
	LastReply string
	UpdatedAt time.Time
}

// Ledger is the engine's read side. Lookup must be normalization-tolerant:
// the same guest may be stored under local, international or bare-digit
// forms of their number.
type Ledger interface {
	Get(phone string) (Reply, bool)
}

var nonDigits = regexp.MustCompile(`\D`)

// CacheLedger keeps replies in an expiring in-memory cache, stored under
// every equivalent digit-string key of the phone so Get works regardless of
// which form either side used.
type CacheLedger struct {
	c           *cache.Cache
	countryCode string
}

// NewCacheLedger creates a ledger whose records expire after ttl.
// countryCode is the default prefix used to bridge local and international
// forms ("1" for NANP numbers); empty disables that bridging.
func NewCacheLedger(ttl time.Duration, countryCode string) *CacheLedger {
	return &CacheLedger{
		c:           cache.New(ttl, ttl/2+time.Minute),
		countryCode: nonDigits.ReplaceAllString(countryCode, ""),
	}
}

func (l *CacheLedger) Set(phone string, r Reply) {
	for _, k := range l.keys(phone) {
		l.c.Set(k, r, cache.DefaultExpiration)
	}
}

func (l *CacheLedger) Get(phone string) (Reply, bool) {
	for _, k := range l.keys(phone) {
		if v, ok := l.c.Get(k); ok {
			return v.(Reply), true
		}
	}
	return Reply{}, false
}

// keys returns the equivalent digit-string variants of phone: as dialed,
// without leading zeros, with and without the default country code.
func (l *CacheLedger) keys(phone string) []string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return nil
	}
	variants := []string{digits}
	if trimmed := strings.TrimLeft(digits, "0"); trimmed != "" && trimmed != digits {
		variants = append(variants, trimmed)
	}
	if cc := l.countryCode; cc != "" {
		local := strings.TrimLeft(digits, "0")
		if strings.HasPrefix(local, cc) && len(local) > len(cc) {
			variants = append(variants, local[len(cc):])
		} else if local != "" {
			variants = append(variants, cc+local)
		}
	}
	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
