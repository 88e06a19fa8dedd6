// Package apiname models fully qualified API identifiers of the form
// "java.util.List.add": a dotted qualifier naming the owning type plus a
// final member segment. Datasets and model outputs both carry these as
// strings; this package gives them one canonical parsed form.
package apiname

import (
	"fmt"
	"strings"

	"github.com/doujins-org/apireckit/internal/textnormalize"
)

// API is a parsed identifier. Qualifier is everything before the last dot
// ("java.util.List"), Member the final segment ("add"). Identifiers without
// a dot have an empty Qualifier.
type API struct {
	Qualifier string
	Member    string
}

// standardPrefixes mark the JDK namespace roots; identifiers under them are
// considered part of the standard library.
var standardPrefixes = []string{"java.", "javax."}

// FromString parses a single identifier. Input is normalized first (see
// textnormalize.Identifier), so call-site decoration like "List.add(int)"
// parses to the same API as "List.add".
func FromString(s string) (API, error) {
	name := textnormalize.Identifier(s)
	if name == "" {
		return API{}, fmt.Errorf("empty API identifier %q", s)
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return API{Qualifier: name[:i], Member: name[i+1:]}, nil
	}
	return API{Member: name}, nil
}

// ListFromString parses a comma-joined answer field ("a.b.c,x.y.z") as it
// appears in dataset CSV rows. Blank segments are skipped; a field with no
// parseable identifier at all is an error.
func ListFromString(s string) ([]API, error) {
	var out []API
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		api, err := FromString(part)
		if err != nil {
			return nil, err
		}
		out = append(out, api)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no API identifiers in %q", s)
	}
	return out, nil
}

// String renders the canonical dotted form.
func (a API) String() string {
	if a.Qualifier == "" {
		return a.Member
	}
	return a.Qualifier + "." + a.Member
}

// IsStandard reports whether the identifier lives under a JDK namespace.
func (a API) IsStandard() bool {
	full := a.String()
	for _, p := range standardPrefixes {
		if strings.HasPrefix(full, p) {
			return true
		}
	}
	return false
}

// Strings flattens parsed identifiers back to their canonical string forms,
// the shape the metrics engine consumes.
func Strings(apis []API) []string {
	out := make([]string, len(apis))
	for i, a := range apis {
		out[i] = a.String()
	}
	return out
}
