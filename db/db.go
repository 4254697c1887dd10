// db/db.go
package db

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/config"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

var Neo4jDriver neo4j.Driver

// InitNeo4j opens the driver used by the configuration store.
func InitNeo4j(cfg config.DatabaseConfiguration) error {
	var err error
	logger.Info("Connecting to Neo4j at URI", zap.String("uri", cfg.URI))
	Neo4jDriver, err = neo4j.NewDriver(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = 30 * time.Minute
			c.MaxConnectionPoolSize = 50
			c.Log = neo4j.ConsoleLogger(neo4j.ERROR)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := Neo4jDriver.VerifyConnectivity(); err != nil {
		return fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	logger.Info("Successfully connected to Neo4j")
	return nil
}

func CloseNeo4j() {
	if Neo4jDriver == nil {
		return
	}
	if err := Neo4jDriver.Close(); err != nil {
		logger.Error("Error closing Neo4j connection", zap.Error(err))
		return
	}
	logger.Info("Neo4j connection closed successfully")
}
