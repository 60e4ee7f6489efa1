// Package es 提供了与 Elasticsearch 交互的客户端功能，用于聊天记录的全文检索。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"medidesk-go/internal/config"
	"medidesk-go/internal/model"
	"medidesk-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端，并确保聊天记录索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"chat_id": { "type": "keyword" },
				"visitor_text": { "type": "text" },
				"assistant_text": { "type": "text" },
				"hospital_id": { "type": "keyword" },
				"created_at": { "type": "date" }
			}
		}
	}`

	createRes, err := ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, createRes.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// ChatLogIndex 是聊天记录索引的读写入口。
type ChatLogIndex struct {
	client    *elasticsearch.Client
	indexName string
}

// NewChatLogIndex 基于已初始化的客户端创建索引入口。
func NewChatLogIndex(client *elasticsearch.Client, indexName string) *ChatLogIndex {
	return &ChatLogIndex{client: client, indexName: indexName}
}

// Index 将单条聊天记录写入索引，文档 ID 与聊天记录 ID 相同。
func (i *ChatLogIndex) Index(ctx context.Context, chat model.ChatLog) error {
	docBytes, err := json.Marshal(model.NewChatLogDocument(chat))
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.indexName,
		DocumentID: chat.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引聊天记录到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chat log")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source model.ChatLogDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// chatSearchFields 是聊天记录检索的字段。
var chatSearchFields = []string{"visitor_text", "assistant_text"}

// wildcardEscaper 转义 wildcard 查询中的通配符。
var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// buildSearchQuery 构造聊天记录检索请求，匹配规则与本地过滤一致：不区分大小写的子串匹配。
// 单个词用 wildcard 匹配词元内部的子串，例如 "appoint" 命中 "appointment"；
// 含空格的关键字按短语前缀匹配。
func buildSearchQuery(query string, size int) map[string]interface{} {
	q := strings.ToLower(strings.TrimSpace(query))
	should := []interface{}{
		map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"type":   "phrase_prefix",
				"fields": chatSearchFields,
			},
		},
	}
	if q != "" && !strings.ContainsAny(q, " \t\n") {
		pattern := "*" + wildcardEscaper.Replace(q) + "*"
		for _, field := range chatSearchFields {
			should = append(should, map[string]interface{}{
				"wildcard": map[string]interface{}{
					field: map[string]interface{}{
						"value":            pattern,
						"case_insensitive": true,
					},
				},
			})
		}
	}
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
		"sort": []map[string]interface{}{
			{"created_at": map[string]string{"order": "desc"}},
		},
	}
}

// Search 在访客问题与助手回答上做子串匹配，按创建时间倒序返回最多 size 条。
func (i *ChatLogIndex) Search(ctx context.Context, query string, size int) ([]model.ChatLog, error) {
	body := buildSearchQuery(query, size)
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.indexName),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, err
	}
	chats := make([]model.ChatLog, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		chats = append(chats, h.Source.ChatLog())
	}
	return chats, nil
}
