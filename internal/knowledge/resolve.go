package knowledge

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalize lowercases s and collapses runs of non-alphanumeric characters
// to a single underscore, trimming leading/trailing underscores.
func normalize(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// Resolve fuzzy-matches a user-supplied page token to a canonical page
// name: exact match first, then normalized prefix match, then normalized
// substring match. Zero matches is ErrNotFound; more than one is
// ErrAmbiguous carrying every candidate.
func (s *Store) Resolve(token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.pages[token]; ok {
		return token, nil
	}

	normalized := normalize(token)
	if normalized == "" {
		return "", ErrNotFound{Token: token}
	}

	var prefixMatches []string
	for name := range s.pages {
		n := normalize(name)
		if strings.HasPrefix(n, normalized) {
			prefixMatches = append(prefixMatches, name)
		}
	}
	switch len(prefixMatches) {
	case 0:
		// fall through to substring match
	case 1:
		return prefixMatches[0], nil
	default:
		return "", ErrAmbiguous{Token: token, Candidates: sortedCopy(prefixMatches)}
	}

	var substringMatches []string
	for name := range s.pages {
		if strings.Contains(normalize(name), normalized) {
			substringMatches = append(substringMatches, name)
		}
	}
	switch len(substringMatches) {
	case 0:
		return "", ErrNotFound{Token: token}
	case 1:
		return substringMatches[0], nil
	default:
		return "", ErrAmbiguous{Token: token, Candidates: sortedCopy(substringMatches)}
	}
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
