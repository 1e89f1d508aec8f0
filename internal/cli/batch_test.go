package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/gqlgate/internal/core/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// upstream echoes each query back; queries containing "missing" fail.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if strings.Contains(body.Query, "missing") {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Entity not found"}]}`))
			return
		}
		data, _ := json.Marshal(map[string]any{"data": map[string]any{
			"query":     strings.TrimSpace(body.Query),
			"variables": body.Variables,
		}})
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(endpoint string) config.AppConfig {
	cfg := config.Default()
	cfg.API.Endpoint = endpoint
	cfg.Retry.Enabled = false
	return cfg
}

func TestLoadBatchItems(t *testing.T) {
	path := writeFile(t, "batch.yaml", `
- operation_name: Viewer
  document: query Viewer { viewer { id } }
- document: |
    query Issues($filter: IssueFilter, $first: Int) {
      issues(filter: $filter, first: $first) { nodes { id } }
    }
  variables:
    first: 10
    filter:
      team:
        key:
          eq: ENG
    labels: [bug, ui]
`)

	items, err := loadBatchItems(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Viewer", items[0].OperationName)
	assert.Nil(t, items[0].Variables)
	assert.Equal(t, "GraphQL request", items[1].Name())
	assert.Contains(t, items[1].Document, "query Issues($filter: IssueFilter, $first: Int) {")

	out, err := json.Marshal(items[1].Variables)
	require.NoError(t, err, "nested YAML maps must be JSON encodable")
	assert.JSONEq(t, `{"first":10,"filter":{"team":{"key":{"eq":"ENG"}}},"labels":["bug","ui"]}`, string(out))
}

func TestLoadBatchItems_HelpExample(t *testing.T) {
	assert.Contains(t, batchCmd.Long, batchExample)

	items, err := loadBatchItems(writeFile(t, "batch.yaml", batchExample))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Viewer", items[0].OperationName)
	assert.Equal(t, "query Viewer { viewer { id } }\n", items[0].Document)
	assert.Equal(t, "query Issue($id: String!) { issue(id: $id) { title } }\n", items[1].Document)
	assert.Equal(t, map[string]any{"id": "ABC-1"}, items[1].Variables)
}

func TestLoadBatchItems_Invalid(t *testing.T) {
	_, err := loadBatchItems(writeFile(t, "batch.yaml", "document: not a list"))
	assert.ErrorContains(t, err, "parse batch file")
}

func TestExecuteBatch(t *testing.T) {
	path := writeFile(t, "batch.yaml", batchExample+"- document: query missing\n")

	var out bytes.Buffer
	require.NoError(t, executeBatch(context.Background(), testConfig(upstream(t).URL), path, &out))

	var results []json.RawMessage
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 3)
	assert.JSONEq(t, `{"query":"query Viewer { viewer { id } }","variables":null}`, string(results[0]))
	assert.JSONEq(t, `{"query":"query Issue($id: String!) { issue(id: $id) { title } }","variables":{"id":"ABC-1"}}`,
		string(results[1]))
	assert.Equal(t, "null", string(results[2]))
}

func TestExecuteBatch_FailureStopsGateway(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(upstream(t).URL)
	cfg.Redis.URL = "redis://" + mr.Addr()

	path := writeFile(t, "batch.yaml", "- document: query missing a\n- document: query missing b\n")

	var out bytes.Buffer
	err := executeBatch(context.Background(), cfg, path, &out)
	assert.ErrorContains(t, err, "all batch queries failed")
	assert.Empty(t, out.String())

	members, zerr := mr.ZMembers("gqlgate:failed_requests")
	require.NoError(t, zerr)
	assert.Len(t, members, 2, "failures are journaled before shutdown")

	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 },
		time.Second, 10*time.Millisecond, "redis connection closed on the error path")
}

func TestExecuteQuery(t *testing.T) {
	path := writeFile(t, "query.graphql", "query Issue($id: String!) { issue(id: $id) { title } }")

	var out bytes.Buffer
	require.NoError(t, executeQuery(context.Background(), testConfig(upstream(t).URL), path,
		`{"id":"ABC-1"}`, "Issue", &out))
	assert.JSONEq(t,
		`{"query":"query Issue($id: String!) { issue(id: $id) { title } }","variables":{"id":"ABC-1"}}`,
		out.String())
}

func TestExecuteQuery_Errors(t *testing.T) {
	cfg := testConfig(upstream(t).URL)

	err := executeQuery(context.Background(), cfg, writeFile(t, "q.graphql", "query { x }"), "{not json", "", &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid --vars")

	err = executeQuery(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.graphql"), "", "", &bytes.Buffer{})
	assert.ErrorContains(t, err, "read document")

	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	err = executeQuery(context.Background(), cfg, writeFile(t, "q.graphql", "query missing"), "", "", &bytes.Buffer{})
	assert.ErrorContains(t, err, "graphql operation failed: graphql error: Entity not found")
	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, "INFO", logLevel("").String())
	assert.Equal(t, "WARN", logLevel("warn").String())
	assert.Equal(t, "DEBUG", logLevel("debug").String())
}
