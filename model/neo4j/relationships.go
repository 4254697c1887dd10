// model/neo4j/relationships.go
package pip_neo4j

// Relationship Types
const (
	// RelMaps links a connection to each of its mapping rules
	RelMaps = "MAPS"
)
