// Package dbcapabilities describes the closed set of database backends sqlbridge can
// connect to, and resolves free-form backend names to canonical IDs.
//
// Minimal usage example:
//
//	import "github.com/redbco/sqlbridge/pkg/dbcapabilities"
//
//	func backendFor(label string) (dbcapabilities.DatabaseID, error) {
//	    id, ok := dbcapabilities.ParseID(label) // "POSTGRESQL", "pgsql", "postgres" ...
//	    if !ok {
//	        return "", fmt.Errorf("unsupported database type: %s", label)
//	    }
//	    return id, nil
//	}
//
// RedactConnectionString masks passwords in any of the connection string forms the
// backends accept, so that strings can be logged or echoed back to clients.
package dbcapabilities
