package resource

import "strings"

// LibraryNameIsSafe reports whether a library name taken from a request may be
// used to build a lookup path. Any dot prefix or any separator, plain or
// escaped, is refused.
func LibraryNameIsSafe(libraryName string) bool {
	name := strings.ToLower(libraryName)
	for _, prefix := range []string{".", "%2e", `\u002e`} {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	for _, sep := range []string{"/", `\`, "%2f", "%5c", `\u002f`, `\u005c`} {
		if strings.Contains(name, sep) {
			return false
		}
	}
	return true
}

// NameContainsForbiddenSequence reports whether a library, resource, contract
// or locale name could step outside the directory it is resolved against.
// Unlike LibraryNameIsSafe it allows inner separators, so "images/logo.png"
// passes.
func NameContainsForbiddenSequence(name string) bool {
	if name == "" {
		return false
	}
	name = strings.ToLower(name)

	for _, prefix := range []string{".", "/", `\`, "%2e", "%2f", "%5c", `\u002e`, `\u002f`, `\u005c`} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, suffix := range []string{"/", "%2f", `\u002f`} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, seq := range []string{
		"../", `..\`, "/..", `\..`,
		"..%2f", "..%5c", "%2e%2e", ".%2e", "%2e.",
		`\u002e\u002e`, `..\u002f`, `..\u005c`,
	} {
		if strings.Contains(name, seq) {
			return true
		}
	}
	return name == ".."
}

func trimLeadingSlash(s string) string {
	return strings.TrimLeft(s, "/")
}
