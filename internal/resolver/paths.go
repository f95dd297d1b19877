package resolver

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// RelativePath rewrites a path reported by the processor so it is relative
// to the job root. Everything up to and including the "/<jobID>/" marker is
// stripped. A path without the marker is kept when it is already a clean
// relative path inside the job, and otherwise reduced to its base name.
func RelativePath(jobID, p string) string {
	if p == "" {
		return ""
	}

	slashed := "/" + strings.TrimPrefix(filepath.ToSlash(p), "/")
	marker := "/" + jobID + "/"
	if i := strings.LastIndex(slashed, marker); i >= 0 {
		if rel := cleanRelative(slashed[i+len(marker):]); rel != "" {
			return rel
		}
	}

	if !filepath.IsAbs(p) && !strings.HasPrefix(filepath.ToSlash(p), "/") {
		if rel := cleanRelative(filepath.ToSlash(p)); rel != "" {
			return rel
		}
	}

	return path.Base(slashed)
}

// cleanRelative returns a cleaned relative path, or "" if it escapes
func cleanRelative(p string) string {
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return ""
	}
	return clean
}

// FileURL builds the artifact route for a path relative to the job root
func FileURL(base, jobID, rel string) string {
	if rel == "" {
		return ""
	}
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(jobID) + "/files/" + strings.Join(segments, "/")
}

// withinRoot reports whether p is root itself or lies beneath it
func withinRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
