package elasticsearch

// buildIndexMapping returns the JSON mapping for the products index. Name
// and description are analyzed text; category is a keyword so the filter is
// an exact match.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "pid":         { "type": "keyword" },
      "sid":         { "type": "keyword" },
      "name":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "description": { "type": "text" },
      "image":       { "type": "keyword", "index": false },
      "category":    { "type": "keyword" },
      "price":       { "type": "double" },
      "stock":       { "type": "long" },
      "sales":       { "type": "long" },
      "rating":      { "type": "double" },
      "clicks":      { "type": "long" }
    }
  }
}`
}
