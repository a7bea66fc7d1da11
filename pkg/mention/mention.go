// Package mention scans message text for issue-key and user-mention
// patterns. Pure functions, no I/O.
package mention

import "regexp"

var (
	issueKeyRegexp = regexp.MustCompile(`\b[A-Z]{2,}-\d+\b`)
	userRegexp     = regexp.MustCompile(`<@(U[A-Z0-9]+)>`)
)

// IssueKeys returns the issue keys found in text, deduped, first-occurrence
// order preserved. Returns nil when there are no matches.
func IssueKeys(text string) []string {
	matches := issueKeyRegexp.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var keys []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		keys = append(keys, m)
	}
	return keys
}

// ResolveUsers replaces every <@Uxxxx> mention whose id is present in
// nameByID with "@<display name>". Unknown mentions are left untouched.
func ResolveUsers(text string, nameByID map[string]string) string {
	if text == "" || len(nameByID) == 0 {
		return text
	}
	return userRegexp.ReplaceAllStringFunc(text, func(m string) string {
		id := userRegexp.FindStringSubmatch(m)[1]
		if name, ok := nameByID[id]; ok {
			return "@" + name
		}
		return m
	})
}
