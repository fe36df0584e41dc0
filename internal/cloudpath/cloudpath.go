// Package cloudpath holds helpers for forward-slash rooted cloud paths.
//
// A cloud path identifies a file or folder position in the remote store
// independent of the local filesystem's path syntax. The root folder is "/".
package cloudpath

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	Sep  = "/"
	Root = Sep
)

// StripStartingSlash removes a single leading slash.
func StripStartingSlash(p string) string {
	return strings.TrimPrefix(p, Sep)
}

// StartWithSlash prefixes p with a slash unless it already has one.
func StartWithSlash(p string) string {
	if strings.HasPrefix(p, Sep) {
		return p
	}
	return Sep + p
}

// Clean returns the shortest rooted form of p. Backslashes are treated as separators.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", Sep)
	return path.Clean(StartWithSlash(p))
}

// Join appends name to parent and returns a rooted, cleaned path.
func Join(parent, name string) string {
	return Clean(path.Join(StartWithSlash(parent), StripStartingSlash(name)))
}

// Parent returns the folder containing p. The parent of the root is the root.
func Parent(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the last element of p and "" for the root.
func Base(p string) string {
	p = Clean(p)
	if p == Root {
		return ""
	}
	return path.Base(p)
}

// Key returns the case-insensitive comparison key for p, lower-cased and in NFC.
func Key(p string) string {
	return strings.ToLower(norm.NFC.String(p))
}

// IsRoot reports whether p names the root folder.
func IsRoot(p string) bool {
	return p == "" || Clean(p) == Root
}

// NormalizeName returns name in Unicode NFC so that names read from filesystems that
// store decomposed forms (macOS) match the names the cloud reports.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Split returns the non-empty elements of p.
func Split(p string) []string {
	p = StripStartingSlash(Clean(p))
	if p == "" {
		return nil
	}
	return strings.Split(p, Sep)
}
