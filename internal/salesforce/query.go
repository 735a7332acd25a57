package salesforce

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sales-import/internal/logging"
)

// QueryClient executes SOQL queries against the org.
type QueryClient struct {
	client *Client
}

// NewQueryClient creates a QueryClient over the shared REST client.
func NewQueryClient(client *Client) *QueryClient {
	return &QueryClient{client: client}
}

// Query executes a SOQL query and returns the result records.
func (q *QueryClient) Query(ctx context.Context, soql string) ([]map[string]interface{}, error) {
	start := time.Now()
	logging.Logf(logging.Debug, "Executing SOQL query: %s", soql)

	path := q.client.apiPath("query") + "?q=" + url.QueryEscape(soql)

	var result struct {
		Records []map[string]interface{} `json:"records"`
	}
	if err := q.client.requestJSON(ctx, "GET", path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to execute SOQL query: %w", err)
	}

	logging.Logf(logging.Info, "SOQL query executed successfully (record_count=%d duration=%s)",
		len(result.Records), roundSeconds(time.Since(start)))
	return result.Records, nil
}

// FindAccountsByNames resolves partner names to Account ids in a single
// query. Names without a matching Account are absent from the returned map.
func (q *QueryClient) FindAccountsByNames(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, "'"+escapeSOQLString(name)+"'")
	}
	soql := fmt.Sprintf("SELECT Id, Name FROM Account WHERE Name IN (%s)", strings.Join(quoted, ","))

	records, err := q.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(records))
	for _, rec := range records {
		name, _ := rec["Name"].(string)
		id, _ := rec["Id"].(string)
		if name != "" && id != "" {
			mapping[name] = id
		}
	}
	return mapping, nil
}

// escapeSOQLString escapes a value for inclusion in a single-quoted SOQL
// string literal.
func escapeSOQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
