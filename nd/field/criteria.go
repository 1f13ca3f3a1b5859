package field

import (
	"strings"

	"github.com/joshuapare/ndkit/nd/db"
)

// SearchCriteria selects search index entries. It is immutable; every
// setter returns a modified copy.
type SearchCriteria struct {
	query         string
	prefix        bool
	caseSensitive bool
	nodeType      uint16
	anyType       bool
}

// Criteria matches keys equal to query, ignoring case, of any node type.
func Criteria(query string) SearchCriteria {
	return SearchCriteria{query: query, anyType: true}
}

// Query returns the search string.
func (c SearchCriteria) Query() string { return c.query }

// Prefix selects prefix matching instead of exact matching.
func (c SearchCriteria) Prefix(on bool) SearchCriteria {
	c.prefix = on
	return c
}

// CaseSensitive additionally requires the case to match.
func (c SearchCriteria) CaseSensitive(on bool) SearchCriteria {
	c.caseSensitive = on
	return c
}

// RequireNodeType keeps only records with the given type tag.
func (c SearchCriteria) RequireNodeType(id uint16) SearchCriteria {
	c.nodeType, c.anyType = id, false
	return c
}

// AnyNodeType drops the node type requirement.
func (c SearchCriteria) AnyNodeType() SearchCriteria {
	c.nodeType, c.anyType = 0, true
	return c
}

// IsPrefix reports whether prefix matching is selected.
func (c SearchCriteria) IsPrefix() bool { return c.prefix }

// IsCaseSensitive reports whether case must match.
func (c SearchCriteria) IsCaseSensitive() bool { return c.caseSensitive }

// NodeType returns the required type tag, if any.
func (c SearchCriteria) NodeType() (uint16, bool) { return c.nodeType, !c.anyType }

// order places key relative to the match range, ignoring case. Zero means
// key is a candidate.
func (c SearchCriteria) order(key string) int {
	if c.prefix {
		return db.ComparePrefix(key, c.query, false)
	}
	return strings.Compare(db.Fold(key), db.Fold(c.query))
}

// matchesCase applies the case-sensitive check to a candidate.
func (c SearchCriteria) matchesCase(key string) bool {
	if !c.caseSensitive {
		return true
	}
	if c.prefix {
		return strings.HasPrefix(key, c.query)
	}
	return key == c.query
}
