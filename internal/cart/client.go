package cart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const dependency = "cart service"

// Client forwards cart and wishlist additions to the cart service.
type Client struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a client for the cart service at baseURL.
func NewClient(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// AddToCart forwards item to the cart of user uid.
func (c *Client) AddToCart(ctx context.Context, uid string, item domain.CartData) error {
	return c.upload(ctx, "/api/upload/", uid, item)
}

// AddToWishlist forwards item to the wishlist of user uid.
func (c *Client) AddToWishlist(ctx context.Context, uid string, item domain.CartData) error {
	return c.upload(ctx, "/api/wishlist/upload/", uid, item)
}

func (c *Client) upload(ctx context.Context, path, uid string, item domain.CartData) error {
	target := c.baseURL + path + url.PathEscape(uid)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, target, item)
	if err != nil {
		return err
	}
	if err := httpclient.DoJSON(ctx, c.http, req, dependency, nil); err != nil {
		return fmt.Errorf("forward %s for user %s: %w", item.ID, uid, err)
	}

	c.logger.DebugContext(ctx, "forwarded item to cart service",
		slog.String("uid", uid),
		slog.String("pid", item.ID),
		slog.String("path", path),
	)
	return nil
}
