// Package mapping parses GraphQL connection responses into domain records.
// All functions are pure; they hold no state between calls.
package mapping

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Shape errors returned by ParsePage.
var (
	// ErrMissingData indicates the response lacks the top-level "data" field.
	ErrMissingData = errors.New(`response missing "data" field`)

	// ErrMissingConnection indicates the data container lacks the products connection.
	ErrMissingConnection = errors.New(`response missing "data.products" field`)
)

// Product is one synced product record. Fields are opaque strings as far as
// the sync is concerned; UpdatedAt is ISO-8601 as reported by the server.
type Product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updatedAt"`
}

// PageResult is the parsed form of one page of the products connection.
// LastCursor is the cursor of the last edge on the page and is empty when
// the page contained no edges.
type PageResult struct {
	Products    []Product
	LastCursor  string
	HasNextPage bool
}

// ParsePage parses a full products-connection response body.
// A null data container (top-level errors) yields an empty, valid result.
func ParsePage(body map[string]interface{}) (PageResult, error) {
	result := PageResult{}

	data, ok := body["data"]
	if !ok {
		return result, ErrMissingData
	}
	if data == nil {
		// data is null when top-level errors exist.
		return result, nil
	}

	dataObj, ok := data.(map[string]interface{})
	if !ok {
		return result, ErrMissingData
	}

	products, ok := dataObj["products"].(map[string]interface{})
	if !ok {
		return result, ErrMissingConnection
	}

	if edges, ok := products["edges"].([]interface{}); ok {
		for _, raw := range edges {
			edge, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if node, ok := edge["node"]; ok {
				product, err := parseProductNode(node)
				if err != nil {
					return PageResult{}, err
				}
				result.Products = append(result.Products, product)
			}
			if cursor, ok := edge["cursor"].(string); ok {
				result.LastCursor = cursor
			}
		}
	}

	if pageInfo, ok := products["pageInfo"].(map[string]interface{}); ok {
		if hasNext, ok := pageInfo["hasNextPage"].(bool); ok {
			result.HasNextPage = hasNext
		}
	}

	return result, nil
}

// parseProductNode decodes a single product node into a Product.
func parseProductNode(node interface{}) (Product, error) {
	var product Product

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &product,
	})
	if err != nil {
		return product, fmt.Errorf("create node decoder: %w", err)
	}

	if err := decoder.Decode(node); err != nil {
		return product, fmt.Errorf("decode product node: %w", err)
	}

	return product, nil
}

// ExtractErrors returns the human-readable messages of all server-reported
// GraphQL errors. It never fails; a missing or non-list errors field yields
// an empty slice.
func ExtractErrors(body map[string]interface{}) []string {
	var messages []string

	errs, ok := body["errors"].([]interface{})
	if !ok {
		return messages
	}

	for _, raw := range errs {
		message := "Unknown GraphQL error"
		if obj, ok := raw.(map[string]interface{}); ok {
			if msg, ok := obj["message"].(string); ok {
				message = msg
			}
		}
		messages = append(messages, message)
	}

	return messages
}
