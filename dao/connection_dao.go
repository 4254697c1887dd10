// dao/connection_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	pip_neo4j "github.com/controlcoreio/control-core-012025-sub001/model/neo4j"
	helper_util "github.com/controlcoreio/control-core-012025-sub001/util/helper"
)

// ConnectionDAO stores connections as CONNECTION nodes and their rules as
// MAPPING_RULE nodes linked by MAPS relationships.
type ConnectionDAO struct {
	Driver neo4j.Driver
}

func NewConnectionDAO(driver neo4j.Driver) (*ConnectionDAO, error) {
	dao := &ConnectionDAO{Driver: driver}
	if err := dao.EnsureUniqueConstraints(context.Background()); err != nil {
		return nil, err
	}
	return dao, nil
}

func (dao *ConnectionDAO) closeSession(session neo4j.Session) {
	if err := session.Close(); err != nil {
		logger.Error("Failed to close Neo4j session", zap.Error(err))
	}
}

func (dao *ConnectionDAO) EnsureUniqueConstraints(ctx context.Context) error {
	logger.Info("Ensuring unique constraints on connection and mapping rule ids")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer dao.closeSession(session)

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		for _, query := range []string{
			`CREATE CONSTRAINT unique_connection_id IF NOT EXISTS
        FOR (c:` + pip_neo4j.LabelConnection + `) REQUIRE c.` + pip_neo4j.AttrID + ` IS UNIQUE`,
			`CREATE CONSTRAINT unique_mapping_rule_id IF NOT EXISTS
        FOR (r:` + pip_neo4j.LabelMappingRule + `) REQUIRE r.` + pip_neo4j.AttrID + ` IS UNIQUE`,
		} {
			if _, err := transaction.Run(query, nil); err != nil {
				return nil, fmt.Errorf("failed to create unique constraint: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraints", zap.Error(err))
		return err
	}
	return nil
}

func (dao *ConnectionDAO) SaveConnection(ctx context.Context, conn *model.Connection) error {
	start := time.Now()
	props, err := connectionProps(conn)
	if err != nil {
		return err
	}
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer dao.closeSession(session)

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (c:` + pip_neo4j.LabelConnection + ` {` + pip_neo4j.AttrID + `: $id})
        SET c += $props
        `
		if _, err := transaction.Run(query, map[string]interface{}{"id": conn.ID, "props": props}); err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to save connection", zap.String("connectionID", conn.ID), zap.Error(err))
		return err
	}
	logger.Info("Connection saved",
		zap.String("connectionID", conn.ID),
		zap.Int("version", conn.Version),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (dao *ConnectionDAO) DeleteConnection(ctx context.Context, id string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer dao.closeSession(session)

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:` + pip_neo4j.LabelConnection + ` {` + pip_neo4j.AttrID + `: $id})
        OPTIONAL MATCH (c)-[:` + pip_neo4j.RelMaps + `]->(r:` + pip_neo4j.LabelMappingRule + `)
        DETACH DELETE c, r
        RETURN count(c) AS deleted
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": id})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}
		if result.Next() {
			if deleted, _ := result.Record().Get("deleted"); cast.ToInt(deleted) > 0 {
				return nil, nil
			}
		}
		return nil, pip_errors.ErrConnectionNotFound
	})
	if err != nil {
		logger.Error("Failed to delete connection", zap.String("connectionID", id), zap.Error(err))
		return err
	}
	logger.Info("Connection deleted", zap.String("connectionID", id))
	return nil
}

// SaveMappings replaces the rule set of a connection in one transaction.
func (dao *ConnectionDAO) SaveMappings(ctx context.Context, connectionID string, rules []model.MappingRule) error {
	ruleProps := make([]interface{}, 0, len(rules))
	for i, rule := range rules {
		props, err := mappingRuleProps(rule, i)
		if err != nil {
			return err
		}
		ruleProps = append(ruleProps, props)
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer dao.closeSession(session)

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		check, err := transaction.Run(`MATCH (c:`+pip_neo4j.LabelConnection+` {`+pip_neo4j.AttrID+`: $id}) RETURN c.`+pip_neo4j.AttrID, map[string]interface{}{"id": connectionID})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}
		if !check.Next() {
			return nil, pip_errors.ErrConnectionNotFound
		}

		clear := `
        MATCH (:` + pip_neo4j.LabelConnection + ` {` + pip_neo4j.AttrID + `: $id})-[:` + pip_neo4j.RelMaps + `]->(r:` + pip_neo4j.LabelMappingRule + `)
        DETACH DELETE r
        `
		if _, err := transaction.Run(clear, map[string]interface{}{"id": connectionID}); err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}

		create := `
        MATCH (c:` + pip_neo4j.LabelConnection + ` {` + pip_neo4j.AttrID + `: $id})
        UNWIND $rules AS rule
        CREATE (c)-[:` + pip_neo4j.RelMaps + `]->(r:` + pip_neo4j.LabelMappingRule + `)
        SET r = rule
        `
		if _, err := transaction.Run(create, map[string]interface{}{"id": connectionID, "rules": ruleProps}); err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to save mapping rules", zap.String("connectionID", connectionID), zap.Error(err))
		return err
	}
	logger.Info("Mapping rules saved", zap.String("connectionID", connectionID), zap.Int("rules", len(rules)))
	return nil
}

// LoadAll reads every connection with its rules in declaration order.
// Records that cannot be decoded are skipped and logged.
func (dao *ConnectionDAO) LoadAll(ctx context.Context) ([]StoredConnection, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer dao.closeSession(session)

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:` + pip_neo4j.LabelConnection + `)
        OPTIONAL MATCH (c)-[:` + pip_neo4j.RelMaps + `]->(r:` + pip_neo4j.LabelMappingRule + `)
        WITH c, r ORDER BY r.` + pip_neo4j.AttrPosition + `
        RETURN c, collect(r) AS rules
        ORDER BY c.` + pip_neo4j.AttrID + `
        `
		result, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}

		var stored []StoredConnection
		for result.Next() {
			record := result.Record()
			node, _ := record.Get("c")
			rules, _ := record.Get("rules")
			sc, err := storedFromRecord(node, rules)
			if err != nil {
				logger.Warn("Skipping undecodable connection record", zap.Error(err))
				continue
			}
			stored = append(stored, sc)
		}
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", pip_errors.ErrDatabaseOperation, err)
		}
		return stored, nil
	})
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return nil, err
	}
	stored, _ := result.([]StoredConnection)
	logger.Info("Configuration loaded from Neo4j", zap.Int("connections", len(stored)))
	return stored, nil
}

func storedFromRecord(node any, rules any) (StoredConnection, error) {
	n, ok := node.(neo4j.Node)
	if !ok {
		return StoredConnection{}, fmt.Errorf("unexpected connection record type %T", node)
	}
	conn, err := connectionFromProps(n.Props)
	if err != nil {
		return StoredConnection{}, err
	}
	sc := StoredConnection{Connection: conn}
	list, _ := rules.([]interface{})
	for _, item := range list {
		rn, ok := item.(neo4j.Node)
		if !ok {
			continue
		}
		rule, err := mappingRuleFromProps(rn.Props)
		if err != nil {
			return StoredConnection{}, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
		rule.ConnectionID = conn.ID
		sc.Mappings = append(sc.Mappings, rule)
	}
	return sc, nil
}

func connectionProps(conn *model.Connection) (map[string]interface{}, error) {
	configuration, err := json.Marshal(conn.Configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	auth, err := json.Marshal(conn.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth: %w", err)
	}
	return map[string]interface{}{
		pip_neo4j.AttrName:          conn.Name,
		"type":                      string(conn.Type),
		"provider":                  conn.Provider,
		"endpoint":                  conn.Endpoint,
		pip_neo4j.AttrConfiguration: string(configuration),
		pip_neo4j.AttrAuth:          string(auth),
		"cache_enabled":             conn.CacheEnabled,
		"cache_ttl_seconds":         conn.CacheTTLSeconds,
		"refresh_interval_seconds":  conn.RefreshIntervalSeconds,
		"enabled":                   conn.Enabled,
		pip_neo4j.AttrVersion:       conn.Version,
		pip_neo4j.AttrCreatedAt:     conn.CreatedAt.Format(time.RFC3339),
		pip_neo4j.AttrUpdatedAt:     conn.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func connectionFromProps(props map[string]interface{}) (*model.Connection, error) {
	conn := &model.Connection{
		ID:                     cast.ToString(props[pip_neo4j.AttrID]),
		Name:                   cast.ToString(props[pip_neo4j.AttrName]),
		Type:                   model.ConnectionType(cast.ToString(props["type"])),
		Provider:               cast.ToString(props["provider"]),
		Endpoint:               cast.ToString(props["endpoint"]),
		CacheEnabled:           cast.ToBool(props["cache_enabled"]),
		CacheTTLSeconds:        cast.ToInt(props["cache_ttl_seconds"]),
		RefreshIntervalSeconds: cast.ToInt(props["refresh_interval_seconds"]),
		Enabled:                cast.ToBool(props["enabled"]),
		Version:                cast.ToInt(props[pip_neo4j.AttrVersion]),
	}
	if conn.ID == "" {
		return nil, fmt.Errorf("connection node without id")
	}
	if raw := cast.ToString(props[pip_neo4j.AttrConfiguration]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &conn.Configuration); err != nil {
			return nil, fmt.Errorf("connection %s: invalid configuration: %w", conn.ID, err)
		}
	}
	if raw := cast.ToString(props[pip_neo4j.AttrAuth]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &conn.Auth); err != nil {
			return nil, fmt.Errorf("connection %s: invalid auth: %w", conn.ID, err)
		}
	}
	var err error
	if conn.CreatedAt, err = helper_util.ParseTime(cast.ToString(props[pip_neo4j.AttrCreatedAt])); err != nil {
		return nil, fmt.Errorf("connection %s: invalid createdAt: %w", conn.ID, err)
	}
	if conn.UpdatedAt, err = helper_util.ParseTime(cast.ToString(props[pip_neo4j.AttrUpdatedAt])); err != nil {
		return nil, fmt.Errorf("connection %s: invalid updatedAt: %w", conn.ID, err)
	}
	return conn, nil
}

// mappingRuleProps flattens a rule; nested parts travel as JSON.
func mappingRuleProps(rule model.MappingRule, position int) (map[string]interface{}, error) {
	validation, err := json.Marshal(rule.ValidationRules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation rules: %w", err)
	}
	options, err := json.Marshal(rule.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transform options: %w", err)
	}
	return map[string]interface{}{
		pip_neo4j.AttrID:       rule.ID,
		pip_neo4j.AttrPosition: position,
		"source_path":          rule.SourcePath,
		"target_attribute":     rule.TargetAttribute,
		"transform":            string(rule.Transform),
		"data_type":            string(rule.DataType),
		"required":             rule.Required,
		"sensitive":            rule.Sensitive,
		"validation_rules":     string(validation),
		"options":              string(options),
	}, nil
}

func mappingRuleFromProps(props map[string]interface{}) (model.MappingRule, error) {
	rule := model.MappingRule{
		ID:              cast.ToString(props[pip_neo4j.AttrID]),
		SourcePath:      cast.ToString(props["source_path"]),
		TargetAttribute: cast.ToString(props["target_attribute"]),
		Transform:       model.TransformType(cast.ToString(props["transform"])),
		DataType:        model.DataType(cast.ToString(props["data_type"])),
		Required:        cast.ToBool(props["required"]),
		Sensitive:       cast.ToBool(props["sensitive"]),
	}
	if raw := cast.ToString(props["validation_rules"]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &rule.ValidationRules); err != nil {
			return rule, fmt.Errorf("rule %s: invalid validation rules: %w", rule.ID, err)
		}
	}
	if raw := cast.ToString(props["options"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rule.Options); err != nil {
			return rule, fmt.Errorf("rule %s: invalid options: %w", rule.ID, err)
		}
	}
	return rule, nil
}
