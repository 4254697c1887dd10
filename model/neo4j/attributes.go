// model/neo4j/attributes.go
package pip_neo4j

// Attribute Keys shared by connection and mapping rule nodes
const (
	AttrID        = "id"
	AttrName      = "name"
	AttrCreatedAt = "createdAt"
	AttrUpdatedAt = "updatedAt"
	AttrVersion   = "version"

	// AttrPosition keeps the declaration order of mapping rules
	AttrPosition = "position"

	// AttrConfiguration and AttrAuth hold JSON encoded maps
	AttrConfiguration = "configuration"
	AttrAuth          = "auth"
)
