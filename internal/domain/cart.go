package domain

// CartData is the item a shopper adds to a cart or wishlist. The field names
// are the cart service's wire format.
type CartData struct {
	ID          string  `json:"id" validate:"required,max=64"`
	SellerID    string  `json:"sellerid" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imgurl"`
	Cost        float64 `json:"cost" validate:"gte=0"`
}
