package tooldispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchemaFromStructTags(t *testing.T) {
	schema, err := generateSchema[getStructuredDataArgs]()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "record_type")
	require.Contains(t, props, "key")

	recordType, ok := props["record_type"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"client", "mandate", "erp"}, recordType["enum"])

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"record_type", "key"}, required)
}

func TestGenerateSchemaOmitemptyIsOptional(t *testing.T) {
	schema, err := generateSchema[searchVectorStoreArgs]()
	require.NoError(t, err)

	required, _ := schema["required"].([]any)
	assert.NotContains(t, required, "top_k")
	assert.Contains(t, required, "query")
}
