package shopify

// UserError is a validation failure reported inside a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type Publication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OptionValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProductOption struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	OptionValues []OptionValue `json:"optionValues"`
}

type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Product struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Handle   string          `json:"handle"`
	Options  []ProductOption `json:"options"`
	Variants []Variant       `json:"variants"`
}

type MediaInput struct {
	Alt              string `json:"alt"`
	MediaContentType string `json:"mediaContentType"`
	OriginalSource   string `json:"originalSource"`
}

type OptionValueInput struct {
	Name string `json:"name"`
}

type OptionInput struct {
	Name   string             `json:"name"`
	Values []OptionValueInput `json:"values"`
}

// ProductInput is sent as ProductCreateInput.
type ProductInput struct {
	Title           string        `json:"title"`
	DescriptionHTML string        `json:"descriptionHtml"`
	Handle          string        `json:"handle"`
	Vendor          string        `json:"vendor"`
	Status          string        `json:"status"`
	ProductType     string        `json:"productType,omitempty"`
	ProductOptions  []OptionInput `json:"productOptions,omitempty"`
}

type OptionValueUpdate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VariantOptionValue struct {
	Name       string `json:"name"`
	OptionName string `json:"optionName"`
}

type Weight struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

type Measurement struct {
	Weight Weight `json:"weight"`
}

type InventoryItemInput struct {
	Cost                string      `json:"cost"`
	CountryCodeOfOrigin string      `json:"countryCodeOfOrigin"`
	Measurement         Measurement `json:"measurement"`
	RequiresShipping    bool        `json:"requiresShipping"`
	SKU                 string      `json:"sku"`
	Tracked             bool        `json:"tracked"`
}

type InventoryLevelInput struct {
	AvailableQuantity int    `json:"availableQuantity"`
	LocationID        string `json:"locationId"`
}

// VariantInput is sent as ProductVariantsBulkInput.
type VariantInput struct {
	OptionValues        []VariantOptionValue  `json:"optionValues"`
	Price               string                `json:"price"`
	CompareAtPrice      string                `json:"compareAtPrice"`
	Barcode             string                `json:"barcode"`
	MediaSrc            []string              `json:"mediaSrc,omitempty"`
	InventoryPolicy     string                `json:"inventoryPolicy"`
	InventoryItem       InventoryItemInput    `json:"inventoryItem"`
	InventoryQuantities []InventoryLevelInput `json:"inventoryQuantities"`
}
