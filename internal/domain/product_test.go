package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Product {
	return Product{
		PID: "P0001", SID: "S0001", Name: "Blue Mug", Description: "Ceramic",
		Image: "https://img/mug.png", Category: "kitchen",
		Price: 12.5, Stock: 40, Sales: 3, Rating: 4.5, Clicks: 17,
	}
}

func TestProduct_Projections(t *testing.T) {
	p := sample()

	data, err := json.Marshal(p.Data())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "clicks")
	assert.Contains(t, string(data), `"category":"kitchen"`)

	assert.Equal(t, ProductView{PID: "P0001", SID: "S0001", Name: "Blue Mug", Image: "https://img/mug.png", Price: 12.5, Rating: 4.5}, p.View())
	assert.Equal(t, AnalyticsData{PID: "P0001", SID: "S0001", Stock: 40, Sales: 3, Rating: 4.5, Clicks: 17}, p.Analytics())
}

func TestProduct_WireNames(t *testing.T) {
	raw, err := json.Marshal(sample())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, k := range []string{"pid", "sid", "name", "description", "image", "category", "price", "stock", "sales", "rating", "clicks"} {
		assert.Contains(t, fields, k)
	}
}

func TestPatch_Apply(t *testing.T) {
	zero := 0.0
	stock := int64(0)
	img := "https://img/new.png"

	p := sample()
	Patch{Price: &zero, Stock: &stock, Image: &img}.Apply(&p)

	assert.Equal(t, 0.0, p.Price)
	assert.Equal(t, int64(0), p.Stock)
	assert.Equal(t, img, p.Image)
	assert.Equal(t, int64(3), p.Sales)
	assert.Equal(t, 4.5, p.Rating)
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	r := 5.0
	assert.False(t, Patch{Rating: &r}.IsEmpty())
}
