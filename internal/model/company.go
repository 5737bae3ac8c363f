package model

import "strings"

// CompanyIdentity is the opaque key naming the subject of a lookup. It is the
// partition key of the evidence cache.
type CompanyIdentity string

// NormalizeCompany trims surrounding whitespace from a user-supplied company
// name. Everything else is kept verbatim.
func NormalizeCompany(raw string) CompanyIdentity {
	return CompanyIdentity(strings.TrimSpace(raw))
}

// IsZero reports whether the identity is empty.
func (c CompanyIdentity) IsZero() bool {
	return c == ""
}

func (c CompanyIdentity) String() string {
	return string(c)
}

// CandidateLink is a URL naming a document to consider. The URL string itself
// is the link's identity.
type CandidateLink string

func (l CandidateLink) String() string {
	return string(l)
}

// LinksFromStrings converts raw URLs into candidate links, dropping blanks and
// exact duplicates while keeping the first occurrence order.
func LinksFromStrings(urls []string) []CandidateLink {
	seen := make(map[string]bool, len(urls))
	out := make([]CandidateLink, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, CandidateLink(u))
	}
	return out
}
