package catalog

// Product is the canonical product record. Sources normalize into it at the
// boundary; nothing downstream mutates a received Product.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Image      string  `json:"image"`
	IsFeatured bool    `json:"isFeatured"`
}

// NewProduct is the add-product form payload. Price is submitted as an integer.
type NewProduct struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Price    int    `json:"price" validate:"gte=0"`
	Image    string `json:"image" validate:"required"`
}

// PageRequest carries the query parameters of a single page fetch.
type PageRequest struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// Page is one fetched page. Received counts every record the source sent,
// including records dropped during normalization.
type Page struct {
	Products []Product
	Received int
}

type Category struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
}

// Configuration types

type Config struct {
	Source     SourceConfig `yaml:"source"`
	Settings   Settings     `yaml:"settings"`
	Categories []Category   `yaml:"categories"`
}

type SourceConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds, 0 disables the timeout
}

type Settings struct {
	PageSize    int     `yaml:"page_size"`
	DefaultSort SortKey `yaml:"default_sort"`
}
