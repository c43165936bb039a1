package dbcapabilities

import "strings"

// DatabaseID is the canonical identifier for a database backend supported by sqlbridge.
// The set is closed: adapters exist for exactly these four engines.
type DatabaseID string

const (
	PostgreSQL DatabaseID = "postgres"
	MySQL      DatabaseID = "mysql"
	SQLServer  DatabaseID = "mssql"
	Oracle     DatabaseID = "oracle"
)

// Capability describes how a backend is integrated.
type Capability struct {
	// Human-friendly product name, e.g., "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID, e.g., "postgres".
	ID DatabaseID `json:"id"`

	// DefaultPort is informational; connection strings always carry their own target.
	DefaultPort int `json:"defaultPort"`

	// Pooled is true when the native client library maintains a connection pool and
	// honors PoolOptions. Session backends open exactly one session per connection.
	Pooled bool `json:"pooled"`

	// RequiresCredentials is true when username and password must be supplied
	// separately from the connection string.
	RequiresCredentials bool `json:"requiresCredentials"`

	// Common aliases (request labels, driver names) that map to this backend.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database ID.
var All = map[DatabaseID]Capability{
	PostgreSQL: {
		Name:        "PostgreSQL",
		ID:          PostgreSQL,
		DefaultPort: 5432,
		Pooled:      true,
		Aliases:     []string{"postgresql", "pgsql", "pgx"},
	},
	MySQL: {
		Name:        "MySQL",
		ID:          MySQL,
		DefaultPort: 3306,
		Pooled:      true,
		Aliases:     []string{"aurora-mysql"},
	},
	SQLServer: {
		Name:        "Microsoft SQL Server",
		ID:          SQLServer,
		DefaultPort: 1433,
		Pooled:      false,
		Aliases:     []string{"sqlserver", "azure-sql"},
	},
	Oracle: {
		Name:                "Oracle Database",
		ID:                  Oracle,
		DefaultPort:         1521,
		Pooled:              false,
		RequiresCredentials: true,
		Aliases:             []string{"godror", "oracledb"},
	},
}

// nameToID is a normalized lookup index from any known name/alias to the canonical DatabaseID.
var nameToID map[string]DatabaseID

func init() {
	nameToID = make(map[string]DatabaseID, len(All)*3)
	for id, cap := range All {
		nameToID[strings.ToLower(string(id))] = id
		if cap.Name != "" {
			nameToID[strings.ToLower(cap.Name)] = id
		}
		for _, a := range cap.Aliases {
			if a == "" {
				continue
			}
			nameToID[strings.ToLower(a)] = id
		}
	}
}

// ParseID attempts to resolve an arbitrary backend name (canonical id, alias, or product name)
// to a canonical DatabaseID. Matching is case-insensitive. Returns false if unknown.
func ParseID(name string) (DatabaseID, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	id, ok := nameToID[n]
	return id, ok
}

// IDs returns the canonical IDs in a stable order.
func IDs() []DatabaseID {
	return []DatabaseID{PostgreSQL, MySQL, SQLServer, Oracle}
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id DatabaseID) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id DatabaseID) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return c
}

// IsSupported reports whether id is one of the canonical backends.
func IsSupported(id DatabaseID) bool {
	_, ok := All[id]
	return ok
}

// RequiresCredentials reports whether the backend needs explicit username and password.
func RequiresCredentials(id DatabaseID) bool {
	c, ok := Get(id)
	return ok && c.RequiresCredentials
}

// IsPooled reports whether the backend honors pool sizing options.
func IsPooled(id DatabaseID) bool {
	c, ok := Get(id)
	return ok && c.Pooled
}

// String returns the canonical id.
func (id DatabaseID) String() string {
	return string(id)
}
