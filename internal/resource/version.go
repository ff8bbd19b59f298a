package resource

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`^[0-9]+([._][0-9]+)*$`)

// VersionInfo names a version directory of a library, or a version file of a
// resource together with its extension.
type VersionInfo struct {
	Version   string
	Extension string
}

// Compare orders versions by plain string comparison, so "1.10" sorts before
// "1.2". Callers depend on this ordering; it is not semantic versioning.
func (v *VersionInfo) Compare(other *VersionInfo) int {
	return strings.Compare(v.Version, other.Version)
}

func (v *VersionInfo) String() string {
	if v.Extension == "" {
		return v.Version
	}
	return v.Version + "." + v.Extension
}

// SelectVersion picks the highest version among the children of a library or
// resource directory. paths are absolute child paths as returned by
// Source.List, directories ending in a slash.
//
// For libraries only directories qualify, and names ending in documentSuffix
// are skipped. For resources a child qualifies when it is "version.ext" with
// ext equal to the resource's own extension, or a bare version when the
// resource has none. It returns nil when nothing qualifies.
func SelectVersion(paths []string, resourceExt string, isResource bool, documentSuffix string, logger *slog.Logger) *VersionInfo {
	var best *VersionInfo
	var candidates []*VersionInfo

	for _, p := range paths {
		isDir := strings.HasSuffix(p, "/")
		segment := path.Base(strings.TrimSuffix(p, "/"))

		var v *VersionInfo
		if isResource {
			if isDir {
				continue
			}
			v = resourceVersion(segment, resourceExt)
		} else {
			if !isDir || (documentSuffix != "" && strings.HasSuffix(segment, documentSuffix)) {
				continue
			}
			if versionPattern.MatchString(segment) {
				v = &VersionInfo{Version: segment}
			}
		}
		if v == nil {
			continue
		}
		candidates = append(candidates, v)
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}

	if best != nil && logger != nil {
		if sv := semverMax(candidates); sv != nil && sv.Version != best.Version {
			logger.Debug("version selection is lexical, not semantic",
				"selected", best.Version,
				"semantic_max", sv.Version,
			)
		}
	}
	return best
}

func resourceVersion(segment, ext string) *VersionInfo {
	if ext == "" {
		if versionPattern.MatchString(segment) {
			return &VersionInfo{Version: segment}
		}
		return nil
	}
	version, ok := strings.CutSuffix(segment, "."+ext)
	if !ok || !versionPattern.MatchString(version) {
		return nil
	}
	return &VersionInfo{Version: version, Extension: ext}
}

func semverMax(candidates []*VersionInfo) *VersionInfo {
	var best *VersionInfo
	var bestSV *semver.Version
	for _, c := range candidates {
		sv, err := semver.NewVersion(strings.ReplaceAll(c.Version, "_", "."))
		if err != nil {
			return nil
		}
		if bestSV == nil || sv.GreaterThan(bestSV) {
			best, bestSV = c, sv
		}
	}
	return best
}
