package domain

// DefaultSearchLimit matches the hit count MeiliSearch returns when no limit
// is sent.
const DefaultSearchLimit = 20

// SearchQuery is a full-text query over name and description. A non-empty
// Category restricts hits to that exact category.
type SearchQuery struct {
	Text     string `query:"search"`
	Category string `query:"category"`
	Limit    int    `query:"-"`
}

// EffectiveLimit returns Limit or the default when unset.
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit < 1 {
		return DefaultSearchLimit
	}
	return q.Limit
}
