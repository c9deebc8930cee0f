package source

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/mmcdole/gofeed"
)

// Keys under which a JSON object body may hold the product array.
var envelopeKeys = []string{"products", "items", "data", "groceries"}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run decodes a page body into normalized products. JSON arrays, JSON objects
// wrapping an array and RSS/Atom product feeds are accepted. Records that
// cannot be normalized are skipped but still counted in Page.Received.
func (p *Parser) Run(data []byte, contentType string) (catalog.Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return catalog.Page{}, fmt.Errorf("empty response body")
	}

	if isXML(trimmed, contentType) {
		return p.runFeed(trimmed)
	}

	records, err := p.unwrap(trimmed)
	if err != nil {
		return catalog.Page{}, err
	}

	products := make([]catalog.Product, 0, len(records))
	for i, record := range records {
		product, err := normalizeRecord(record)
		if err != nil {
			slog.Warn("Skipping product record", "index", i, "error", err)
			continue
		}
		products = append(products, product)
	}

	return catalog.Page{Products: products, Received: len(records)}, nil
}

// Record decodes a single JSON product record.
func (p *Parser) Record(data []byte) (*catalog.Product, error) {
	product, err := normalizeRecord(bytes.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *Parser) unwrap(data []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage

	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse product array: %w", err)
		}
		return records, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse response object: %w", err)
		}
		for _, key := range envelopeKeys {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("failed to parse '%s' array: %w", key, err)
			}
			return records, nil
		}
		return nil, fmt.Errorf("response object has no product array (expected one of %v)", envelopeKeys)
	default:
		return nil, fmt.Errorf("unexpected response body")
	}
}

type rawProduct struct {
	ID              json.RawMessage `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Price           json.RawMessage `json:"price"`
	Image           string          `json:"image"`
	IsFeatured      *bool           `json:"isFeatured"`
	IsFeaturedSnake *bool           `json:"is_featured"`
	Featured        *bool           `json:"featured"`
}

func normalizeRecord(data json.RawMessage) (catalog.Product, error) {
	var raw rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return catalog.Product{}, fmt.Errorf("failed to parse product: %w", err)
	}

	id, err := normalizeID(raw.ID)
	if err != nil {
		return catalog.Product{}, err
	}

	price, err := normalizePrice(raw.Price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %s: %w", id, err)
	}

	product := catalog.Product{
		ID:       id,
		Name:     strings.TrimSpace(raw.Name),
		Category: strings.TrimSpace(raw.Category),
		Price:    price,
		Image:    raw.Image,
	}

	for _, flag := range []*bool{raw.IsFeatured, raw.IsFeaturedSnake, raw.Featured} {
		if flag != nil {
			product.IsFeatured = *flag
			break
		}
	}

	return product, nil
}

func normalizeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("product has no id")
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("invalid product id: %w", err)
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("product has no id")
		}
		return id, nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("invalid product id: %s", string(raw))
	}
	return number.String(), nil
}

func normalizePrice(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("price is missing")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("invalid price: %w", err)
		}
	}

	return parsePrice(text)
}

func parsePrice(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("price is missing")
	}

	price, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %s", text)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("price must be a finite number: %s", text)
	}
	if price < 0 {
		return 0, fmt.Errorf("price must be non-negative: %s", text)
	}
	return price, nil
}

func (p *Parser) runFeed(data []byte) (catalog.Page, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	products := make([]catalog.Product, 0, len(feed.Items))
	for i, item := range feed.Items {
		product, err := p.normalizeItem(item)
		if err != nil {
			slog.Warn("Skipping feed item", "index", i, "error", err)
			continue
		}
		products = append(products, product)
	}

	return catalog.Page{Products: products, Received: len(feed.Items)}, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (catalog.Product, error) {
	id := cmp.Or(item.GUID, item.Link)
	if id == "" {
		return catalog.Product{}, fmt.Errorf("feed item has no guid or link")
	}

	priceText := extensionValue(item, "g", "price")
	if priceText == "" {
		return catalog.Product{}, fmt.Errorf("feed item %s has no g:price", id)
	}
	price, err := parsePrice(priceText)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("feed item %s: %w", id, err)
	}

	product := catalog.Product{
		ID:    id,
		Name:  strings.TrimSpace(item.Title),
		Price: price,
	}

	for _, category := range item.Categories {
		if strings.EqualFold(category, "featured") {
			product.IsFeatured = true
			continue
		}
		if product.Category == "" {
			product.Category = strings.TrimSpace(category)
		}
	}
	if product.Category == "" {
		product.Category = extensionValue(item, "g", "product_type")
	}

	if item.Image != nil {
		product.Image = item.Image.URL
	}
	if product.Image == "" {
		product.Image = extensionValue(item, "g", "image_link")
	}
	if product.Image == "" && len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		product.Image = item.Enclosures[0].URL
	}

	return product, nil
}

func extensionValue(item *gofeed.Item, namespace, name string) string {
	values := item.Extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func isXML(data []byte, contentType string) bool {
	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "xml") {
		return true
	}
	return data[0] == '<'
}
