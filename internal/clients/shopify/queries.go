package shopify

const publicationsQuery = `query ($first: Int!) {
  publications(first: $first) {
    edges { node { id name } }
  }
}`

const locationsQuery = `query ($first: Int!) {
  locations(first: $first) {
    edges { node { id name } }
  }
}`

const productQuery = `query ($id: ID!) {
  product(id: $id) {
    id
    title
    handle
    options(first: 10) { id name optionValues { id name } }
    variants(first: 10) { edges { node { id title } } }
  }
}`

const productCreateMutation = `mutation ($media: [CreateMediaInput!], $product: ProductCreateInput!) {
  productCreate(media: $media, product: $product) {
    product {
      id
      title
      handle
      options(first: 10) { id name optionValues { id name } }
      variants(first: 10) { edges { node { id title } } }
    }
    userErrors { field message }
  }
}`

const publishMutation = `mutation ($id: ID!, $input: [PublicationInput!]!) {
  publishablePublish(id: $id, input: $input) {
    userErrors { field message }
  }
}`

const variantsBulkCreateMutation = `mutation ($media: [CreateMediaInput!], $productId: ID!, $strategy: ProductVariantsBulkCreateStrategy, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(media: $media, productId: $productId, strategy: $strategy, variants: $variants) {
    productVariants { id title }
    userErrors { field message }
  }
}`

const optionUpdateMutation = `mutation ($productId: ID!, $option: OptionUpdateInput!, $optionValuesToUpdate: [OptionValueUpdateInput!]) {
  productOptionUpdate(productId: $productId, option: $option, optionValuesToUpdate: $optionValuesToUpdate) {
    userErrors { field message }
  }
}`
