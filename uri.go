package swiftpath

import (
	"fmt"
	"net/url"
	"strings"
)

// URIScheme is the scheme used by AsURI and ParseURI.
const URIScheme = "swift"

const uriPrefix = URIScheme + "://"

// AsURI renders the path as swift://container/key. Each segment is
// percent-encoded on its own, so ParseURI restores the exact same path.
func (p PurePath) AsURI() string {
	var b strings.Builder
	b.WriteString(uriPrefix)
	for i, s := range p.segs {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// ParseURI is the inverse of AsURI.
func ParseURI(uri string) (PurePath, error) {
	rest, ok := strings.CutPrefix(uri, uriPrefix)
	if !ok {
		return PurePath{}, fmt.Errorf("%w: expecting a %s URI, got %q", ErrInvalidPath, uriPrefix, uri)
	}
	var segs []string
	for _, raw := range strings.Split(rest, Separator) {
		if raw == "" {
			continue
		}
		s, err := url.PathUnescape(raw)
		if err != nil {
			return PurePath{}, fmt.Errorf("%w: %q: %v", ErrInvalidPath, uri, err)
		}
		segs, err = appendSegments(segs, s)
		if err != nil {
			return PurePath{}, err
		}
	}
	return newFromSegments(segs)
}
