package database

import "strings"

// Command verbs whose effect depends on how many rows they touched.
var rowMutating = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
	"COPY":   true,
}

// Command verbs that change the database whenever they succeed.
var alwaysMutating = map[string]bool{
	"CREATE":   true,
	"ALTER":    true,
	"DROP":     true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"COMMENT":  true,
	"ANALYZE":  true,
	"VACUUM":   true,
	"REINDEX":  true,
	"CLUSTER":  true,
	"REFRESH":  true,
	"SECURITY": true,
	"IMPORT":   true,
	"REASSIGN": true,
}

// CommandVerb returns the leading keyword of a command tag such as
// "INSERT 0 1" or "ALTER TABLE".
func CommandVerb(statusMessage string) string {
	f := strings.Fields(statusMessage)
	if len(f) == 0 {
		return ""
	}
	return strings.ToUpper(f[0])
}

// Classify reports whether a statement with the given command tag plausibly
// changed state. It is a heuristic over the statement type, not a diff.
func Classify(statusMessage string, rowCount int64) bool {
	verb := CommandVerb(statusMessage)
	switch {
	case rowMutating[verb]:
		return rowCount > 0
	case alwaysMutating[verb]:
		return true
	default:
		return false
	}
}
