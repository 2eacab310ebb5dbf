package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	agenterrors "bikeshop-agent/internal/common/errors"
)

// ElasticsearchSource serves FAQ answers from an Elasticsearch index of
// question/answer documents.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index}
}

func (s *ElasticsearchSource) Lookup(ctx context.Context, question string) (string, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  question,
				"fields": []string{"question^2", "answer"},
			},
		},
		"size": 1,
	}

	body, err := json.Marshal(queryBody)
	if err != nil {
		return "", agenterrors.NewFAQLookupFailedError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return "", agenterrors.NewFAQLookupFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", agenterrors.NewFAQLookupFailedError(fmt.Errorf("search error: %s", res.Status()))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Question string `json:"question"`
					Answer   string `json:"answer"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return "", agenterrors.NewFAQLookupFailedError(err)
	}

	if len(result.Hits.Hits) == 0 {
		return "", nil
	}

	hit := result.Hits.Hits[0].Source
	if hit.Question != "" {
		return hit.Question + "\n" + hit.Answer, nil
	}
	return hit.Answer, nil
}
