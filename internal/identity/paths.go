package identity

import "strings"

// RootPrefix labels files at the top of the repository tree
const RootPrefix = "(root)"

// PathPrefix returns the top-level directory of a repository path
func PathPrefix(p string) string {
	p = strings.TrimPrefix(p, "/")
	dir, _, found := strings.Cut(p, "/")
	if !found || dir == "" {
		return RootPrefix
	}
	return dir
}

// PathSuffix returns what follows the last '.' or '/' of a path: the extension for
// "src/main.c", the file name for "src/Makefile", the whole path for "README".
func PathSuffix(p string) string {
	i := strings.LastIndexAny(p, "./")
	if i < 0 || i == len(p)-1 {
		return p
	}
	return p[i+1:]
}
