// Package graph implements the property-graph store on Neo4j: the
// ingestion writer and the read-side query executor used by the query
// sub-agent.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Client wraps the Neo4j driver with the configured database and
// per-query timeout.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient connects to the graph store. The password is read from the
// environment variable named in cfg.PasswordEnv.
func NewClient(ctx context.Context, cfg *config.GraphStoreConfig) (*Client, error) {
	password := os.Getenv(cfg.PasswordEnv)
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating graph driver: %w", err)
	}
	c := &Client{
		driver:   driver,
		database: cfg.Database,
		timeout:  cfg.Timeout(),
		logger:   slog.Default().With("component", "graph"),
	}
	if err := c.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return models.NewFault(models.FaultTransientExternal, "graph.ping", err)
	}
	return nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Query runs one read query and returns the rows as generic maps. Used
// by the query sub-agent's execute_graph_query tool.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, classifyGraphError("graph.query", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(map[string]any, len(result.Keys))
		for _, key := range result.Keys {
			value, _ := rec.Get(key)
			row[key] = flattenValue(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// write runs one statement inside a managed write transaction.
func (c *Client) write(ctx context.Context, cypher string, params map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	if err != nil {
		return classifyGraphError("graph.write", err)
	}
	return nil
}

// flattenValue converts driver node/relationship values into plain maps
// so tool results serialize cleanly.
func flattenValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		out := map[string]any{"labels": val.Labels}
		for k, p := range val.Props {
			out[k] = p
		}
		return out
	case neo4j.Relationship:
		out := map[string]any{"type": val.Type}
		for k, p := range val.Props {
			out[k] = p
		}
		return out
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = flattenValue(item)
		}
		return items
	default:
		return v
	}
}

func classifyGraphError(op string, err error) error {
	if neo4j.IsConnectivityError(err) || neo4j.IsRetryable(err) {
		return models.NewFault(models.FaultTransientExternal, op, err)
	}
	return models.NewFault(models.FaultPermanentExternal, op, err)
}

// SchemaText is the schema description served by the sub-agent's
// schema_inspect tool.
const SchemaText = `Node labels:
  Source {id, kind: Meeting|Document|Chat, title, date, confidentiality, status, tags}
  Chunk {id, seq, speakers, kind, text, importance, start_time, end_time}
  Entity {id, name, normalized_name, type: Person|Organization|Country|Topic|Project,
          first_mentioned, last_mentioned, mention_count}
  Decision {id, description, rationale, date_made, status}
  Action {id, description, priority, status}
  Participant {handle, message_count}

Relationships:
  (Chunk)-[:PART_OF]->(Source)
  (Chunk)-[:NEXT]->(Chunk)            sequential order within a source
  (Chunk)-[:MENTIONS]->(Entity)
  (Chunk)-[:RESULTED_IN]->(Decision)
  (Chunk)-[:RESULTED_IN]->(Action)
  (Participant)-[:PARTICIPATES_IN]->(Source)

Canonical patterns:
  MATCH (c:Chunk)-[:MENTIONS]->(e:Entity {name: $name}) RETURN c.text
  MATCH (s:Source {kind: 'Meeting'})<-[:PART_OF]-(c:Chunk) WHERE s.date = $date RETURN c.text
  MATCH (s:Source {kind: 'Chat'})<-[:PART_OF]-(c:Chunk) WHERE c.text CONTAINS $term RETURN c.text`
