package graphql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// TestProductsQueryIsValid parses the fixed connection document and checks
// the variable contract the pagination driver relies on.
func TestProductsQueryIsValid(t *testing.T) {
	doc, err := parser.ParseQuery(&ast.Source{Input: ProductsQuery})
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)

	op := doc.Operations[0]
	assert.Equal(t, ast.Query, op.Operation)
	assert.Equal(t, "FetchProducts", op.Name)

	vars := map[string]string{}
	for _, v := range op.VariableDefinitions {
		vars[v.Variable] = v.Type.String()
	}
	assert.Equal(t, "Int!", vars["first"])
	assert.Equal(t, "String", vars["after"])
}
