package shipping

import (
	"context"
	"testing"

	"hubon-pickup/internal/clients/shopify"
	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sessionID = "offline_demo.myshopify.com"

var testShop = models.ShopSession{ID: sessionID, Shop: "demo.myshopify.com", AccessToken: "shpat_test"}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, sessionID string) (*account.Account, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetShop(ctx context.Context, sessionID string) (*models.ShopSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShopSession), args.Error(1)
}

// memoryMerchants applies upserts the way the repository does: nil fields
// keep their stored value.
type memoryMerchants struct {
	link    models.MerchantLink
	upserts []models.MerchantLink
}

func (m *memoryMerchants) Upsert(_ context.Context, link *models.MerchantLink) (*models.MerchantLink, error) {
	m.upserts = append(m.upserts, *link)
	m.link.SessionID = link.SessionID
	m.link.APIKey = link.APIKey
	keep := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	keep(&m.link.DefaultProductID, link.DefaultProductID)
	keep(&m.link.DefaultProductVariantID, link.DefaultProductVariantID)
	keep(&m.link.AdditionalProductID, link.AdditionalProductID)
	keep(&m.link.AdditionalProductVariantID, link.AdditionalProductVariantID)
	keep(&m.link.ThresholdPrice, link.ThresholdPrice)
	keep(&m.link.ShippingPrice, link.ShippingPrice)
	stored := m.link
	return &stored, nil
}

// fakeCatalog is an in-memory shop catalog.
type fakeCatalog struct {
	products  map[string]*shopify.Product
	created   []shopify.ProductInput
	published map[string][]string
	variants  map[string][]shopify.VariantInput
	renamed   map[string][]shopify.OptionValueUpdate
	nextID    int
	createErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:  map[string]*shopify.Product{},
		published: map[string][]string{},
		variants:  map[string][]shopify.VariantInput{},
		renamed:   map[string][]shopify.OptionValueUpdate{},
	}
}

func (f *fakeCatalog) Publications(context.Context, models.ShopSession, int) ([]shopify.Publication, error) {
	return []shopify.Publication{{ID: "gid://shopify/Publication/1"}, {ID: "gid://shopify/Publication/2"}}, nil
}

func (f *fakeCatalog) Locations(context.Context, models.ShopSession, int) ([]shopify.Location, error) {
	return []shopify.Location{{ID: "gid://shopify/Location/10"}}, nil
}

func (f *fakeCatalog) Product(_ context.Context, _ models.ShopSession, id string) (*shopify.Product, error) {
	return f.products[id], nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, _ models.ShopSession, product shopify.ProductInput, _ []shopify.MediaInput) (*shopify.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := "gid://shopify/Product/" + string(rune('0'+f.nextID))
	created := &shopify.Product{ID: id, Variants: []shopify.Variant{{ID: id + "/standalone"}}}
	f.products[id] = created
	f.created = append(f.created, product)
	return created, nil
}

func (f *fakeCatalog) PublishProduct(_ context.Context, _ models.ShopSession, productID string, publicationIDs []string) error {
	f.published[productID] = publicationIDs
	return nil
}

func (f *fakeCatalog) CreateVariants(_ context.Context, _ models.ShopSession, productID, strategy string, _ []shopify.MediaInput, variants []shopify.VariantInput) ([]shopify.Variant, error) {
	f.variants[productID] = variants
	return []shopify.Variant{{ID: productID + "/variant"}}, nil
}

func (f *fakeCatalog) UpdateOptionValues(_ context.Context, _ models.ShopSession, productID, optionID string, values []shopify.OptionValueUpdate) error {
	f.renamed[productID+"|"+optionID] = values
	return nil
}

func strPtr(s string) *string { return &s }

func newTestService(link *models.MerchantLink, catalog *fakeCatalog) (*Service, *memoryMerchants) {
	auth := &MockAuthenticator{}
	auth.On("Authenticate", mock.Anything, sessionID).Return(&account.Account{
		Link: link,
		Customer: &models.RegisteredCustomer{
			ID:      1,
			Setting: models.Setting{ExternalUnitPrice: "4.99"},
		},
	}, nil)
	sessions := &MockSessionStore{}
	sessions.On("GetShop", mock.Anything, sessionID).Return(&testShop, nil)

	merchants := &memoryMerchants{link: *link}
	svc := NewService(auth, sessions, merchants, catalog, Config{
		ProductName: "HubOn Local Pickup",
		MediaURL:    "https://cdn.example.com/Local.png",
		ClientID:    "client-1",
	}, zap.NewNop())
	return svc, merchants
}

func TestSave_CreatesBothProducts(t *testing.T) {
	catalog := newFakeCatalog()
	svc, merchants := newTestService(&models.MerchantLink{SessionID: sessionID, APIKey: "abcd-secret"}, catalog)

	saved, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: " 50 ", ShippingPrice: "5"})
	require.NoError(t, err)

	require.Len(t, catalog.created, 2)
	assert.Equal(t, "Default Shipping", catalog.created[0].ProductType)
	assert.Equal(t, "Additional Shipping", catalog.created[1].ProductType)
	assert.Equal(t, "hubon-local-pickup", catalog.created[0].Handle)
	assert.Equal(t, "ACTIVE", catalog.created[0].Status)
	assert.Equal(t, []shopify.OptionInput{{Name: "Note", Values: []shopify.OptionValueInput{{Name: "with a minimum order of $50"}}}}, catalog.created[0].ProductOptions)

	assert.Equal(t, []string{"gid://shopify/Publication/1", "gid://shopify/Publication/2"}, catalog.published["gid://shopify/Product/1"])

	variant := catalog.variants["gid://shopify/Product/1"][0]
	assert.Equal(t, "4.99", variant.Price)
	assert.Equal(t, "4.99", variant.CompareAtPrice)
	assert.Equal(t, "4.99", variant.InventoryItem.Cost)
	assert.Equal(t, "client-1", variant.Barcode)
	assert.Equal(t, "client-1", variant.InventoryItem.SKU)
	assert.Equal(t, "CONTINUE", variant.InventoryPolicy)
	assert.Equal(t, []shopify.InventoryLevelInput{{AvailableQuantity: 99999, LocationID: "gid://shopify/Location/10"}}, variant.InventoryQuantities)
	assert.Equal(t, []shopify.VariantOptionValue{{Name: "with a minimum order of $50", OptionName: "Note"}}, variant.OptionValues)

	assert.Equal(t, "gid://shopify/Product/1", *saved.DefaultProductID)
	assert.Equal(t, "gid://shopify/Product/1/variant", *saved.DefaultProductVariantID)
	assert.Equal(t, "gid://shopify/Product/2", *saved.AdditionalProductID)
	assert.Equal(t, "gid://shopify/Product/2/variant", *saved.AdditionalProductVariantID)
	assert.Equal(t, "50", *saved.ThresholdPrice)
	assert.Equal(t, "5", *saved.ShippingPrice)
	assert.Equal(t, "abcd*******", saved.APIKey)
	assert.Len(t, merchants.upserts, 3)
}

func TestSave_RenamesExistingProducts(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.products["gid://shopify/Product/7"] = &shopify.Product{
		ID: "gid://shopify/Product/7",
		Options: []shopify.ProductOption{{
			ID:           "gid://shopify/ProductOption/3",
			OptionValues: []shopify.OptionValue{{ID: "gid://shopify/ProductOptionValue/9", Name: "with a minimum order of $50"}},
		}},
	}
	catalog.products["gid://shopify/Product/8"] = &shopify.Product{ID: "gid://shopify/Product/8"}

	link := &models.MerchantLink{
		SessionID:           sessionID,
		APIKey:              "abcd-secret",
		DefaultProductID:    strPtr("gid://shopify/Product/7"),
		AdditionalProductID: strPtr("gid://shopify/Product/8"),
	}
	svc, merchants := newTestService(link, catalog)

	_, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: "75", ShippingPrice: "5"})
	require.NoError(t, err)

	assert.Empty(t, catalog.created)
	assert.Equal(t, []shopify.OptionValueUpdate{{ID: "gid://shopify/ProductOptionValue/9", Name: "with a minimum order of $75"}},
		catalog.renamed["gid://shopify/Product/7|gid://shopify/ProductOption/3"])
	require.Len(t, merchants.upserts, 1)
	assert.Nil(t, merchants.upserts[0].DefaultProductID)
	assert.Equal(t, "75", *merchants.upserts[0].ThresholdPrice)
}

func TestSave_RecreatesDeletedProduct(t *testing.T) {
	catalog := newFakeCatalog()
	link := &models.MerchantLink{
		SessionID:        sessionID,
		APIKey:           "abcd-secret",
		DefaultProductID: strPtr("gid://shopify/Product/99"),
	}
	svc, _ := newTestService(link, catalog)

	saved, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: "50", ShippingPrice: "5"})
	require.NoError(t, err)
	require.Len(t, catalog.created, 2)
	assert.Equal(t, "gid://shopify/Product/1", *saved.DefaultProductID)
}

func TestSave_Validation(t *testing.T) {
	catalog := newFakeCatalog()
	svc, merchants := newTestService(&models.MerchantLink{SessionID: sessionID, APIKey: "abcd-secret"}, catalog)

	_, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: "", ShippingPrice: "-1"})
	require.Error(t, err)
	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidation, domainErr.Code)
	assert.Equal(t, "This field is required.", domainErr.Fields["threshold_price"])
	assert.Contains(t, domainErr.Fields, "shipping_price")
	assert.Empty(t, catalog.created)
	assert.Empty(t, merchants.upserts)
}

func TestSave_NotRegistered(t *testing.T) {
	auth := &MockAuthenticator{}
	auth.On("Authenticate", mock.Anything, sessionID).
		Return(nil, errors.NewDomainError(errors.CodeNotRegistered, "hubon account not linked", "no api key"))
	sessions := &MockSessionStore{}
	catalog := newFakeCatalog()

	svc := NewService(auth, sessions, &memoryMerchants{}, catalog, Config{ProductName: "HubOn Local Pickup"}, zap.NewNop())
	_, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: "50", ShippingPrice: "5"})

	assert.True(t, errors.HasCode(err, errors.CodeNotRegistered))
	sessions.AssertNotCalled(t, "GetShop", mock.Anything, mock.Anything)
	assert.Empty(t, catalog.created)
}

func TestSave_CatalogFailureStoresNothing(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.createErr = errors.NewDomainError(errors.CodeShopifyFailure, "shopify request failed", "unexpected status: 502")
	svc, merchants := newTestService(&models.MerchantLink{SessionID: sessionID, APIKey: "abcd-secret"}, catalog)

	_, err := svc.Save(context.Background(), sessionID, Settings{ThresholdPrice: "50", ShippingPrice: "5"})
	assert.True(t, errors.HasCode(err, errors.CodeShopifyFailure))
	assert.Empty(t, merchants.upserts)
}
