package policy

import "strings"

// PrimaryArg returns the tool-specific argument used for rule matching, or
// ("", false) if the tool has none. Bash -> command; Read|Write|Edit ->
// path; Grep|Glob -> pattern.
func PrimaryArg(tool string, args map[string]any) (string, bool) {
	var key string
	switch tool {
	case "Bash":
		key = "command"
	case "Read", "Write", "Edit":
		key = "path"
	case "Grep", "Glob":
		key = "pattern"
	default:
		return "", false
	}
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MatchPattern reports whether a single rule pattern matches a tool
// invocation, by this precedence:
//  1. exact equality
//  2. trailing ".*" with a dot boundary
//  3. "(...)" primary-argument match, exact or "prefix:*"
//  4. otherwise no match
func MatchPattern(toolName, pattern string, primaryArg string, hasPrimaryArg bool) bool {
	if pattern == toolName {
		return true
	}

	if strings.HasSuffix(pattern, ".*") {
		prefix := pattern[:len(pattern)-2]
		return toolName == prefix || strings.HasPrefix(toolName, prefix+".")
	}

	if open := strings.IndexByte(pattern, '('); open >= 0 {
		if !strings.HasSuffix(pattern, ")") {
			// "(" with no matching ")" is malformed: never matches.
			return false
		}
		toolPrefix := pattern[:open]
		argPattern := pattern[open+1 : len(pattern)-1]
		if toolPrefix != toolName {
			return false
		}
		if !hasPrimaryArg {
			return false
		}
		if strings.HasSuffix(argPattern, ":*") {
			prefix := argPattern[:len(argPattern)-2]
			return strings.HasPrefix(primaryArg, prefix)
		}
		return primaryArg == argPattern
	}

	return false
}

// MatchAny reports whether any pattern in the list matches — logical OR.
func MatchAny(patterns []string, toolName string, primaryArg string, hasPrimaryArg bool) (matched bool, rule string) {
	for _, p := range patterns {
		if MatchPattern(toolName, p, primaryArg, hasPrimaryArg) {
			return true, p
		}
	}
	return false, ""
}

// NameMatches reports whether pattern could ever match some invocation of
// toolName, ignoring the primary-argument restriction of a "(...)" pattern.
// Used for catalog-building (subagent tool filtering, skill allowed_tools
// intersection): a tool is offered to the model whenever *some* call to
// it might be allowed, with the actual per-call arg-pattern enforcement
// left to Decide/CheckPermission at dispatch time.
func NameMatches(toolName, pattern string) bool {
	if pattern == toolName {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := pattern[:len(pattern)-2]
		return toolName == prefix || strings.HasPrefix(toolName, prefix+".")
	}
	if open := strings.IndexByte(pattern, '('); open >= 0 {
		if !strings.HasSuffix(pattern, ")") {
			return false
		}
		return pattern[:open] == toolName
	}
	return false
}

// NameMatchesAny is the catalog-filtering analogue of MatchAny.
func NameMatchesAny(patterns []string, toolName string) bool {
	for _, p := range patterns {
		if NameMatches(toolName, p) {
			return true
		}
	}
	return false
}
