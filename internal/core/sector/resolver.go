// Package sector decides whether a user's sector list grants access to a
// guarded URL path. Everything here is pure and synchronous so the guard can
// fall back to it when the remote permission check is unavailable.
package sector

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// slugToSector maps the routing slug under /setor/ to the sector name that a
// user must hold. The table mirrors the one used by the ERP backend.
var slugToSector = map[string]string{
	"ti":              "TI",
	"compras":         "Compras",
	"manutencao":      "Manutencao",
	"financeiro":      "Financeiro",
	"marketing":       "Marketing",
	"produtos":        "Produtos",
	"comercial":       "Comercial",
	"outros-servicos": "Outros",
	"servicos":        "Outros",
}

var (
	pathPattern    = regexp.MustCompile(`^/setor/([^/]+)(?:/.*)?$`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9 -]+`)
	multiSpace     = regexp.MustCompile(`\s+`)
	sectorPrefixes = []string{"setor de ", "setor da ", "setor do "}
)

// AdminOnly reports whether the path lies in the admin subtree, which is
// reserved for administrators regardless of sector membership.
func AdminOnly(path string) bool {
	return path == "/setor/ti/admin" || strings.HasPrefix(path, "/setor/ti/admin/")
}

// Requirement names the sector a path demands. Sector is empty when the slug
// has no mapping, which the guard treats as deny.
type Requirement struct {
	Slug   string
	Sector string
}

// FromPath extracts the slug from a path of shape /setor/<slug>(/...) and
// resolves it against the slug table. It returns nil when the path is not a
// sector path at all.
func FromPath(path string) *Requirement {
	m := pathPattern.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	return &Requirement{Slug: m[1], Sector: slugToSector[m[1]]}
}

// Normalize reduces a sector name to its comparable form: diacritics
// transliterated to ASCII, lower-cased, punctuation stripped (spaces and
// hyphens survive), whitespace collapsed, and a leading "setor de/da/do "
// removed.
func Normalize(name string) string {
	s := strings.ToLower(unidecode.Unidecode(name))
	s = nonAlnum.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for _, prefix := range sectorPrefixes {
		if rest, found := strings.CutPrefix(s, prefix); found {
			s = rest
			break
		}
	}
	return s
}

// Allowed reports whether any of the user's sectors satisfies the required
// sector name. A match is normalized equality or symmetric whole-token
// containment; raw substring containment is deliberately not a match, so "TI"
// cannot collide with unrelated words that merely contain it.
func Allowed(required string, userSectors []string) bool {
	req := Normalize(required)
	if req == "" {
		return false
	}
	for _, raw := range userSectors {
		own := Normalize(raw)
		if own == "" {
			continue
		}
		if own == req || tokenOverlap(own, req) {
			return true
		}
	}
	return false
}

// tokenOverlap reports whether any whitespace-delimited token of one string
// appears as a whole token of the other. Token intersection is symmetric, so
// one pass covers both directions.
func tokenOverlap(a, b string) bool {
	for _, ta := range strings.Fields(a) {
		for _, tb := range strings.Fields(b) {
			if ta == tb {
				return true
			}
		}
	}
	return false
}
