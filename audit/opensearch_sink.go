package audit

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchSink mirrors infra/opensearch/logger.go's LogPaymentRequest
// indexing call, but indexes into a single rolling index per flow rather
// than the teacher's per-tenant-per-provider index name, since merchant
// and connector are now Event fields rather than index-name components.
type OpenSearchSink struct {
	client    *opensearch.Client
	indexName string
}

// NewOpenSearchSink wraps a ready opensearch.Client; indexName should be
// something like "audit-events" (teacher rolls indices per day/provider,
// this keeps one index and relies on the timestamp field for time queries).
func NewOpenSearchSink(client *opensearch.Client, indexName string) *OpenSearchSink {
	return &OpenSearchSink{client: client, indexName: indexName}
}

func (s *OpenSearchSink) Write(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "audit: marshal event for opensearch")
	}

	req := opensearchapi.IndexRequest{
		Index: s.indexName,
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.Wrap(err, "audit: opensearch index request")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.Newf("audit: opensearch index error for flow %s: %s", ev.Flow, resp.String())
	}
	return nil
}
