// Package authz defines the enumerated capabilities and role bundles that
// drive authorization decisions. Permission checks go through a capability
// set rather than group-name string comparisons.
package authz

// Capability is a single enumerated permission codename.
type Capability string

const (
	// CapViewPost allows reading post details.
	CapViewPost Capability = "view_post"
	// CapAddPost allows creating posts (and seeing the dashboard).
	CapAddPost Capability = "add_post"
	// CapChangePost allows editing posts.
	CapChangePost Capability = "change_post"
	// CapDeletePost allows deleting posts.
	CapDeletePost Capability = "delete_post"
	// CapPublishPost allows toggling post publication. Holders also see all
	// posts on the dashboard and may act on posts they do not own.
	CapPublishPost Capability = "publish_post"
)

// Role group names created by the bootstrap step.
const (
	RoleReaders = "Readers"
	RoleAuthors = "Authors"
	RoleEditors = "Editors"
)

// RoleCapabilities is the fixed permission set per group.
var RoleCapabilities = map[string][]Capability{
	RoleReaders: {CapViewPost},
	RoleAuthors: {CapViewPost, CapChangePost, CapDeletePost, CapAddPost},
	RoleEditors: {CapViewPost, CapChangePost, CapDeletePost, CapAddPost, CapPublishPost},
}

// DisplayNames maps capability codenames to their human-readable labels.
var DisplayNames = map[Capability]string{
	CapViewPost:    "Can view post",
	CapAddPost:     "Can add post",
	CapChangePost:  "Can change post",
	CapDeletePost:  "Can delete post",
	CapPublishPost: "Can publish post",
}

// Set is a capability set supporting O(1) lookup.
type Set map[Capability]struct{}

// NewSet builds a Set from the given capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the capability.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Add inserts the capability into the set.
func (s Set) Add(c Capability) {
	s[c] = struct{}{}
}
