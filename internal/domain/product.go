package domain

// PageSize is the fixed number of products on one catalog page.
const PageSize = 18

// Product is a catalog listing. It is the only entity the service stores;
// the search index holds a full copy of every product.
type Product struct {
	PID         string  `json:"pid" bson:"pid"`
	SID         string  `json:"sid" bson:"sid"`
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	Image       string  `json:"image" bson:"image"`
	Category    string  `json:"category" bson:"category"`
	Price       float64 `json:"price" bson:"price"`
	Stock       int64   `json:"stock" bson:"stock"`
	Sales       int64   `json:"sales" bson:"sales"`
	Rating      float64 `json:"rating" bson:"rating"`
	Clicks      int64   `json:"clicks" bson:"clicks"`
}

// ProductData is the product detail view. Clicks are internal and omitted.
type ProductData struct {
	PID         string  `json:"pid"`
	SID         string  `json:"sid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
	Sales       int64   `json:"sales"`
	Rating      float64 `json:"rating"`
}

// ProductView is the card shown on a catalog page.
type ProductView struct {
	PID    string  `json:"pid"`
	SID    string  `json:"sid"`
	Name   string  `json:"name"`
	Image  string  `json:"image"`
	Price  float64 `json:"price"`
	Rating float64 `json:"rating"`
}

// AnalyticsData is the seller-facing performance view of a product.
type AnalyticsData struct {
	PID    string  `json:"pid"`
	SID    string  `json:"sid"`
	Stock  int64   `json:"stock"`
	Sales  int64   `json:"sales"`
	Rating float64 `json:"rating"`
	Clicks int64   `json:"clicks"`
}

// Data projects p onto the detail view.
func (p *Product) Data() ProductData {
	return ProductData{
		PID:         p.PID,
		SID:         p.SID,
		Name:        p.Name,
		Description: p.Description,
		Image:       p.Image,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Sales:       p.Sales,
		Rating:      p.Rating,
	}
}

// View projects p onto the catalog card.
func (p *Product) View() ProductView {
	return ProductView{PID: p.PID, SID: p.SID, Name: p.Name, Image: p.Image, Price: p.Price, Rating: p.Rating}
}

// Analytics projects p onto the analytics view.
func (p *Product) Analytics() AnalyticsData {
	return AnalyticsData{PID: p.PID, SID: p.SID, Stock: p.Stock, Sales: p.Sales, Rating: p.Rating, Clicks: p.Clicks}
}

// Patch is a partial update. Nil fields are left unchanged; a non-nil field
// overwrites the stored value, zero included.
type Patch struct {
	Image  *string
	Price  *float64
	Stock  *int64
	Sales  *int64
	Rating *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Image == nil && p.Price == nil && p.Stock == nil && p.Sales == nil && p.Rating == nil
}

// Apply merges the patch into prod.
func (p Patch) Apply(prod *Product) {
	if p.Image != nil {
		prod.Image = *p.Image
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.Sales != nil {
		prod.Sales = *p.Sales
	}
	if p.Rating != nil {
		prod.Rating = *p.Rating
	}
}
