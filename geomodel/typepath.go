package geomodel

import "strings"

// TypePathSeparator joins type path segments when a path is persisted as a single string.
const TypePathSeparator = "::"

// TypePath is an ordered list of categories, from the most general to the most specific.
type TypePath []string

func ParseTypePath(s string) TypePath {
	if s == "" {
		return nil
	}
	return TypePath(strings.Split(s, TypePathSeparator))
}

func (p TypePath) String() string {
	return strings.Join(p, TypePathSeparator)
}

// HasPrefix reports whether the path starts with all of the given segments.
func (p TypePath) HasPrefix(prefix ...string) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Head returns at most n leading segments.
func (p TypePath) Head(n int) TypePath {
	if n > len(p) {
		n = len(p)
	}
	return p[:n]
}

func (p TypePath) Equal(o TypePath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p TypePath) Clone() TypePath {
	if p == nil {
		return nil
	}
	out := make(TypePath, len(p))
	copy(out, p)
	return out
}

// Well known type paths the pipeline branches on.
var (
	TypeAdministrative = TypePath{"AREA", "ADMINISTRATIVE"}
	TypeAdminLevel8    = TypePath{"AREA", "ADMINISTRATIVE", "8"}
	TypeCeremonial     = TypePath{"AREA", "CEREMONIAL"}
	TypeNationalPark   = TypePath{"AREA", "NATIONAL PARK"}
	TypeBuilding       = TypePath{"ARTIFICIAL FEATURE", "BUILDING"}
	TypePublicTrans    = TypePath{"ARTIFICIAL FEATURE", "TRANSPORT", "PUBLIC"}
	TypeRoad           = TypePath{"ARTIFICIAL FEATURE", "TRANSPORT", "ROAD"}
	TypeJunction       = TypePath{"ARTIFICIAL FEATURE", "TRANSPORT", "ROAD", "JUNCTION"}
)
