// model/neo4j/nodes.go
package pip_neo4j

// Node Labels
const (
	// LabelConnection is a configured information source
	LabelConnection = "CONNECTION"

	// LabelMappingRule is one row of a connection's mapping table
	LabelMappingRule = "MAPPING_RULE"
)
