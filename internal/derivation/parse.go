package derivation

// ParseDrvName splits a derivation name into package name and version the way
// builtins.parseDrvName does: the version starts at the first dash that is not
// followed by a letter. "hello-2.12" parses to {hello 2.12}, "rust-analyzer"
// stays a name with an empty version.
func ParseDrvName(name string) ParsedName {
	for i := 0; i < len(name); i++ {
		if name[i] != '-' {
			continue
		}
		if i+1 >= len(name) {
			break
		}
		next := name[i+1]
		if !isLetter(next) {
			return ParsedName{Name: name[:i], Version: name[i+1:]}
		}
	}
	return ParsedName{Name: name}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
