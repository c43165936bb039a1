package dbcapabilities

import (
	"net/url"
	"regexp"
	"strings"
)

// redactedPassword matches the placeholder net/url uses in URL.Redacted.
const redactedPassword = "xxxxx"

// keyValuePassword finds password entries in ADO / key=value connection strings.
var keyValuePassword = regexp.MustCompile(`(?i)((?:^|[;\s])\s*(?:password|pwd)\s*=\s*)([^;]*)`)

// RedactConnectionString masks the password in a connection string so it can be
// logged. It understands URL forms (postgres://, mysql://, sqlserver://), ADO and
// key=value strings (password=...;), MySQL DSNs (user:pass@tcp(host)/db) and Oracle
// EZConnect strings with embedded credentials (user/pass@host:port/service).
// Strings without a recognizable password are returned unchanged.
func RedactConnectionString(connectionString string) string {
	if connectionString == "" {
		return ""
	}

	if strings.Contains(connectionString, "://") {
		parsedURL, err := url.Parse(connectionString)
		if err == nil {
			return parsedURL.Redacted()
		}
	}

	if keyValuePassword.MatchString(connectionString) {
		return keyValuePassword.ReplaceAllString(connectionString, "${1}"+redactedPassword)
	}

	at := strings.LastIndex(connectionString, "@")
	if at <= 0 {
		return connectionString
	}
	credentials := connectionString[:at]

	// MySQL DSN: user:password@protocol(address)/dbname
	if idx := strings.Index(credentials, ":"); idx >= 0 {
		return credentials[:idx+1] + redactedPassword + connectionString[at:]
	}

	// Oracle EZConnect: user/password@host:port/service
	if idx := strings.Index(credentials, "/"); idx >= 0 {
		return credentials[:idx+1] + redactedPassword + connectionString[at:]
	}

	return connectionString
}
