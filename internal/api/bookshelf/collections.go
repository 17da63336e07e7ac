package bookshelf

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/drallgood/shelf-reader/internal/models"
)

// ListCollections returns the user's collections with their book counts
func (c *Client) ListCollections(ctx context.Context) ([]models.Collection, error) {
	var raw []models.Collection
	if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, &raw, true); err != nil {
		return nil, err
	}
	collections := make([]models.Collection, 0, len(raw))
	for _, col := range raw {
		if err := c.validate.Struct(col); err != nil {
			c.logger.Warn("Dropping invalid collection", map[string]interface{}{
				"collection_id": col.ID,
				"error":         err.Error(),
			})
			continue
		}
		collections = append(collections, col)
	}
	return collections, nil
}

// CreateCollection creates an empty collection
func (c *Client) CreateCollection(ctx context.Context, name string) (*models.Collection, error) {
	body := models.CollectionRequest{Name: strings.TrimSpace(name)}
	if err := c.validate.Struct(body); err != nil {
		return nil, fmt.Errorf("invalid collection: %w", err)
	}
	var col models.Collection
	if err := c.doJSON(ctx, http.MethodPost, "/collections", body, &col, true); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(col); err != nil {
		return nil, fmt.Errorf("%w: collection: %v", ErrMalformedResponse, err)
	}
	return &col, nil
}

// DeleteCollection deletes a collection. The books stay in the catalog.
func (c *Client) DeleteCollection(ctx context.Context, collectionID int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/collections/%d", collectionID), nil, nil, true)
}

// CollectionBooks lists the books of a collection
func (c *Client) CollectionBooks(ctx context.Context, collectionID int) ([]models.Book, error) {
	return c.listBooks(ctx, fmt.Sprintf("/collections/%d/books", collectionID))
}

// AddToCollection puts a book in a collection
func (c *Client) AddToCollection(ctx context.Context, collectionID, bookID int) error {
	endpoint := fmt.Sprintf("/collections/%d/books/%d", collectionID, bookID)
	return WithBookID(c.doJSON(ctx, http.MethodPost, endpoint, nil, nil, true), bookID)
}

// RemoveFromCollection takes a book out of a collection
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID, bookID int) error {
	endpoint := fmt.Sprintf("/collections/%d/books/%d", collectionID, bookID)
	return WithBookID(c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil, true), bookID)
}
