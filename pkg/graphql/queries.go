package graphql

// ProductsQuery is the fixed connection query used for paginated product
// fetches. Variables: $first (Int!) and $after (String, nullable). The
// server reports query-cost data under extensions.cost when available.
const ProductsQuery = `
query FetchProducts($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    edges {
      cursor
      node {
        id
        title
        updatedAt
      }
    }
    pageInfo {
      hasNextPage
    }
  }
}
`
