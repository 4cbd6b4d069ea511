package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/loomkit/loom/logging"
)

// variantSuffix matches a trailing "_<variant>" where the variant is purely
// alphabetic, optionally followed by a level marker like "_Lv2". A bare
// level marker without an alphabetic variant never matches, so IDs such as
// "Bandit_Lv3" are kept as distinct entities.
var variantSuffix = regexp.MustCompile(`_([A-Za-z]+)(_Lv[0-9]+)?$`)

// Options configures a Resolver.
type Options struct {
	// Aliases maps display names to canonical IDs, lookup is
	// case-insensitive.
	Aliases map[string]string

	Logger logging.Logger
}

// Resolver maps raw model-emitted identifiers onto a canonical ID set.
// Immutable after construction, safe for concurrent use.
type Resolver struct {
	canonical map[string]string // lowercased ID -> canonical form
	aliases   map[string]string // lowercased alias -> canonical ID
	logger    logging.Logger
}

// New creates a Resolver over the known canonical IDs.
func New(knownIDs []string, optFns ...func(o *Options)) *Resolver {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Resolver{
		canonical: make(map[string]string, len(knownIDs)),
		aliases:   make(map[string]string, len(opts.Aliases)),
		logger:    logging.OrNoOp(opts.Logger),
	}
	for _, id := range knownIDs {
		r.canonical[strings.ToLower(id)] = id
	}
	// Aliases go through the same cleaning as lookups so display names
	// containing spaces still match.
	for alias, id := range opts.Aliases {
		r.aliases[strings.ToLower(clean(alias))] = id
	}
	return r
}

// Known reports whether id (any casing) is a canonical ID.
func (r *Resolver) Known(id string) bool {
	_, ok := r.canonical[strings.ToLower(id)]
	return ok
}

// Normalize maps a raw identifier to its canonical form. Resolution order:
// exact match, alias, case-insensitive match, repeated variant-suffix
// stripping, then longest known prefix on underscore boundaries. An ID that
// survives all steps is returned cleaned as a new entity ID. Normalize is
// idempotent: feeding its output back returns the same value.
func (r *Resolver) Normalize(raw string) string {
	s := clean(raw)
	if s == "" {
		return ""
	}

	if canonical, ok := r.lookup(s); ok {
		return canonical
	}

	// Strip variant suffixes one at a time, checking after each strip so
	// "Guard_Angry" finds "Guard" but "Mira_Stormborn" can still resolve
	// by prefix below if "Mira_Stormborn_Tired" stripped to it.
	stripped := s
	for {
		next := variantSuffix.ReplaceAllString(stripped, "")
		if next == stripped || next == "" {
			break
		}
		stripped = next
		if canonical, ok := r.lookup(stripped); ok {
			r.logger.Debug("resolved variant id", "raw", raw, "canonical", canonical)
			return canonical
		}
	}

	// Longest known prefix on underscore splits of the original input.
	parts := strings.Split(s, "_")
	for i := len(parts) - 1; i > 0; i-- {
		prefix := strings.Join(parts[:i], "_")
		if canonical, ok := r.lookup(prefix); ok {
			r.logger.Debug("resolved by prefix", "raw", raw, "canonical", canonical)
			return canonical
		}
	}

	// Unknown entity: the fully stripped form becomes its ID, which maps
	// to itself on any later pass.
	r.logger.Debug("unresolved id accepted as new entity", "raw", raw, "id", stripped)
	return stripped
}

func (r *Resolver) lookup(s string) (string, bool) {
	lower := strings.ToLower(s)
	if canonical, ok := r.canonical[lower]; ok {
		return canonical, true
	}
	if canonical, ok := r.aliases[lower]; ok {
		return canonical, true
	}
	return "", false
}

// clean trims the input and replaces whitespace with underscores, dropping
// any character that is not a letter, digit or underscore. Letters from any
// script survive, so non-Latin display names stay distinct.
func clean(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}
