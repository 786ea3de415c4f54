package shipping

import (
	"context"
	"math"
	"strconv"
	"strings"

	"hubon-pickup/internal/clients/shopify"
	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

const (
	// catalogPageSize is the most publications and locations read per save.
	catalogPageSize = 250

	noteOption       = "Note"
	variantStrategy  = "REMOVE_STANDALONE_VARIANT"
	stockPerLocation = 99999
	weightKilograms  = 96000

	productDescription = "HubOn stands out by offering eco-friendly hub-to-hub transport and empowering local makers to grow their businesses while reducing their carbon footprint."
)

type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*account.Account, error)
}

type SessionStore interface {
	GetShop(ctx context.Context, sessionID string) (*models.ShopSession, error)
}

type MerchantStore interface {
	Upsert(ctx context.Context, link *models.MerchantLink) (*models.MerchantLink, error)
}

// Catalog is the subset of the Shopify Admin API used to provision the
// shipping products.
type Catalog interface {
	Publications(ctx context.Context, shop models.ShopSession, first int) ([]shopify.Publication, error)
	Locations(ctx context.Context, shop models.ShopSession, first int) ([]shopify.Location, error)
	Product(ctx context.Context, shop models.ShopSession, id string) (*shopify.Product, error)
	CreateProduct(ctx context.Context, shop models.ShopSession, product shopify.ProductInput, media []shopify.MediaInput) (*shopify.Product, error)
	PublishProduct(ctx context.Context, shop models.ShopSession, productID string, publicationIDs []string) error
	CreateVariants(ctx context.Context, shop models.ShopSession, productID, strategy string, media []shopify.MediaInput, variants []shopify.VariantInput) ([]shopify.Variant, error)
	UpdateOptionValues(ctx context.Context, shop models.ShopSession, productID, optionID string, values []shopify.OptionValueUpdate) error
}

// Config names the shipping products and identifies them to the carrier.
type Config struct {
	ProductName string
	MediaURL    string
	ClientID    string
}

// Settings is the merchant's free-shipping threshold and pickup price.
type Settings struct {
	ThresholdPrice string `json:"threshold_price"`
	ShippingPrice  string `json:"shipping_price"`
}

// kind is one of the two shipping products kept in the shop's catalog.
type kind struct {
	productType string
	storedID    func(*models.MerchantLink) *string
	assign      func(link *models.MerchantLink, productID, variantID *string)
}

var kinds = []kind{
	{
		productType: "Default Shipping",
		storedID:    func(l *models.MerchantLink) *string { return l.DefaultProductID },
		assign: func(l *models.MerchantLink, productID, variantID *string) {
			l.DefaultProductID, l.DefaultProductVariantID = productID, variantID
		},
	},
	{
		productType: "Additional Shipping",
		storedID:    func(l *models.MerchantLink) *string { return l.AdditionalProductID },
		assign: func(l *models.MerchantLink, productID, variantID *string) {
			l.AdditionalProductID, l.AdditionalProductVariantID = productID, variantID
		},
	},
}

// Service saves shipping settings and keeps the shop's shipping products in
// step with them.
type Service struct {
	accounts  Authenticator
	sessions  SessionStore
	merchants MerchantStore
	catalog   Catalog
	config    Config
	logger    *zap.Logger
}

func NewService(accounts Authenticator, sessions SessionStore, merchants MerchantStore, catalog Catalog, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		accounts:  accounts,
		sessions:  sessions,
		merchants: merchants,
		catalog:   catalog,
		config:    cfg,
		logger:    logger,
	}
}

// shopCatalog is what every product in one save is published to and
// stocked at.
type shopCatalog struct {
	shop         models.ShopSession
	publications []string
	locations    []string
	unitPrice    string
	note         string
}

// Save stores the threshold and shipping prices for sessionID. A shipping
// product that is already in the catalog has its note renamed to the new
// threshold. A missing one is created, published and given a priced
// variant, and its ids are stored.
func (s *Service) Save(ctx context.Context, sessionID string, in Settings) (*models.MerchantLink, error) {
	in.ThresholdPrice = strings.TrimSpace(in.ThresholdPrice)
	in.ShippingPrice = strings.TrimSpace(in.ShippingPrice)
	if err := validate(in); err != nil {
		return nil, err
	}

	acct, err := s.accounts.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	shop, err := s.sessions.GetShop(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cat, err := s.loadCatalog(ctx, *shop)
	if err != nil {
		return nil, err
	}
	cat.unitPrice = acct.Customer.Setting.ExternalUnitPrice
	cat.note = "with a minimum order of $" + in.ThresholdPrice

	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("shop", shop.Shop))
	for _, k := range kinds {
		productID, variantID, err := s.syncProduct(ctx, cat, k, k.storedID(acct.Link), logger)
		if err != nil {
			return nil, err
		}
		if productID == nil {
			continue
		}
		update := &models.MerchantLink{SessionID: sessionID, APIKey: acct.Link.APIKey}
		k.assign(update, productID, variantID)
		if _, err := s.merchants.Upsert(ctx, update); err != nil {
			return nil, err
		}
	}

	stored, err := s.merchants.Upsert(ctx, &models.MerchantLink{
		SessionID:      sessionID,
		APIKey:         acct.Link.APIKey,
		ThresholdPrice: &in.ThresholdPrice,
		ShippingPrice:  &in.ShippingPrice,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("shipping settings saved",
		zap.String("threshold_price", in.ThresholdPrice),
		zap.String("shipping_price", in.ShippingPrice))
	redacted := stored.Redacted()
	return &redacted, nil
}

func (s *Service) loadCatalog(ctx context.Context, shop models.ShopSession) (*shopCatalog, error) {
	publications, err := s.catalog.Publications(ctx, shop, catalogPageSize)
	if err != nil {
		return nil, err
	}
	locations, err := s.catalog.Locations(ctx, shop, catalogPageSize)
	if err != nil {
		return nil, err
	}

	cat := &shopCatalog{shop: shop}
	for _, p := range publications {
		cat.publications = append(cat.publications, p.ID)
	}
	for _, l := range locations {
		cat.locations = append(cat.locations, l.ID)
	}
	return cat, nil
}

// syncProduct returns the ids of a newly created product, or nil when the
// stored product was updated in place or could not be completed.
func (s *Service) syncProduct(ctx context.Context, cat *shopCatalog, k kind, storedID *string, logger *zap.Logger) (*string, *string, error) {
	if storedID != nil && *storedID != "" {
		existing, err := s.catalog.Product(ctx, cat.shop, *storedID)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			return nil, nil, s.renameNote(ctx, cat, existing)
		}
		logger.Info("stored shipping product is gone, recreating",
			zap.String("product_type", k.productType),
			zap.String("product_id", *storedID))
	}
	return s.createProduct(ctx, cat, k, logger)
}

func (s *Service) renameNote(ctx context.Context, cat *shopCatalog, product *shopify.Product) error {
	if len(product.Options) == 0 {
		return nil
	}
	option := product.Options[0]
	values := make([]shopify.OptionValueUpdate, 0, len(option.OptionValues))
	for _, v := range option.OptionValues {
		values = append(values, shopify.OptionValueUpdate{ID: v.ID, Name: cat.note})
	}
	return s.catalog.UpdateOptionValues(ctx, cat.shop, product.ID, option.ID, values)
}

func (s *Service) createProduct(ctx context.Context, cat *shopCatalog, k kind, logger *zap.Logger) (*string, *string, error) {
	media := s.media()
	product, err := s.catalog.CreateProduct(ctx, cat.shop, shopify.ProductInput{
		Title:           s.config.ProductName,
		DescriptionHTML: productDescription,
		Handle:          strings.ReplaceAll(strings.ToLower(s.config.ProductName), " ", "-"),
		Vendor:          s.config.ProductName,
		Status:          "ACTIVE",
		ProductType:     k.productType,
		ProductOptions: []shopify.OptionInput{{
			Name:   noteOption,
			Values: []shopify.OptionValueInput{{Name: cat.note}},
		}},
	}, media)
	if err != nil {
		return nil, nil, err
	}
	if product == nil || product.ID == "" {
		logger.Warn("shipping product was not created", zap.String("product_type", k.productType))
		return nil, nil, nil
	}

	if err := s.catalog.PublishProduct(ctx, cat.shop, product.ID, cat.publications); err != nil {
		return nil, nil, err
	}
	if len(product.Variants) == 0 {
		logger.Warn("shipping product has no variants", zap.String("product_id", product.ID))
		return nil, nil, nil
	}

	variants, err := s.catalog.CreateVariants(ctx, cat.shop, product.ID, variantStrategy, media, []shopify.VariantInput{s.variant(cat)})
	if err != nil {
		return nil, nil, err
	}

	productID := product.ID
	var variantID *string
	if len(variants) > 0 {
		variantID = &variants[0].ID
	}
	logger.Info("shipping product created",
		zap.String("product_type", k.productType),
		zap.String("product_id", productID))
	return &productID, variantID, nil
}

func (s *Service) media() []shopify.MediaInput {
	return []shopify.MediaInput{{
		Alt:              s.config.ProductName,
		MediaContentType: "IMAGE",
		OriginalSource:   s.config.MediaURL,
	}}
}

func (s *Service) variant(cat *shopCatalog) shopify.VariantInput {
	quantities := make([]shopify.InventoryLevelInput, 0, len(cat.locations))
	for _, id := range cat.locations {
		quantities = append(quantities, shopify.InventoryLevelInput{AvailableQuantity: stockPerLocation, LocationID: id})
	}
	return shopify.VariantInput{
		OptionValues:    []shopify.VariantOptionValue{{Name: cat.note, OptionName: noteOption}},
		Price:           cat.unitPrice,
		CompareAtPrice:  cat.unitPrice,
		Barcode:         s.config.ClientID,
		MediaSrc:        []string{s.config.MediaURL},
		InventoryPolicy: "CONTINUE",
		InventoryItem: shopify.InventoryItemInput{
			Cost:                cat.unitPrice,
			CountryCodeOfOrigin: "US",
			Measurement:         shopify.Measurement{Weight: shopify.Weight{Unit: "KILOGRAMS", Value: weightKilograms}},
			RequiresShipping:    true,
			SKU:                 s.config.ClientID,
			Tracked:             true,
		},
		InventoryQuantities: quantities,
	}
}

func validate(in Settings) error {
	fields := map[string]string{}
	checkPrice(fields, "threshold_price", in.ThresholdPrice)
	checkPrice(fields, "shipping_price", in.ShippingPrice)
	if len(fields) > 0 {
		return errors.NewDomainError(errors.CodeValidation, "invalid shipping settings", "price fields failed validation").WithFields(fields)
	}
	return nil
}

func checkPrice(fields map[string]string, name, value string) {
	if value == "" {
		fields[name] = "This field is required."
		return
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		fields[name] = "Enter a price of zero or more."
	}
}
