package batch

import "strings"

// pathGetter is satisfied by picker results that expose their path
type pathGetter interface {
	GetPath() string
}

// NormalizePath reduces whatever the file picker returned to a single path.
// It accepts nil, a string, a *string, string slices (first non-empty entry),
// a map or object carrying a "path", and any value with a GetPath method.
// The second result is false when no usable path was found.
func NormalizePath(ref any) (string, bool) {
	switch v := ref.(type) {
	case nil:
		return "", false
	case string:
		return clean(v)
	case *string:
		if v == nil {
			return "", false
		}
		return clean(*v)
	case []string:
		for _, s := range v {
			if p, ok := clean(s); ok {
				return p, true
			}
		}
		return "", false
	case []any:
		for _, item := range v {
			if p, ok := NormalizePath(item); ok {
				return p, true
			}
		}
		return "", false
	case map[string]string:
		return clean(v["path"])
	case map[string]any:
		return NormalizePath(v["path"])
	case pathGetter:
		return clean(v.GetPath())
	default:
		return "", false
	}
}

func clean(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	return p, true
}
