package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/schema"
)

func adapter(policy schema.UnknownKeysPolicy) schema.StaticAdapter {
	return schema.StaticAdapter{
		Unknown: policy,
		FieldList: []schema.Field{
			{Name: "title", Type: schema.TypeString, Required: true},
			{Name: "draft", Type: schema.TypeBool, Default: false},
			{Name: "status", Type: schema.TypeEnum, EnumVals: []string{"draft", "published"}},
		},
	}
}

func TestValidateAppliesDefaultsForMissingOptionalFields(t *testing.T) {
	header := document.Header{"title": "hello"}
	result := schema.Validate(header, adapter(schema.UnknownIgnore))
	require.True(t, result.OK)
	require.Equal(t, false, result.Normalized["draft"])
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	header := document.Header{"draft": true}
	result := schema.Validate(header, adapter(schema.UnknownIgnore))
	require.False(t, result.OK)
	require.Len(t, result.Errors, 1)
}

func TestValidateRejectsWrongType(t *testing.T) {
	header := document.Header{"title": 42}
	result := schema.Validate(header, adapter(schema.UnknownIgnore))
	require.False(t, result.OK)
}

func TestValidateEnumRejectsOutOfSetValue(t *testing.T) {
	header := document.Header{"title": "hello", "status": "archived"}
	result := schema.Validate(header, adapter(schema.UnknownIgnore))
	require.False(t, result.OK)
}

func TestValidateUnknownKeysPolicies(t *testing.T) {
	header := document.Header{"title": "hello", "extra": "field"}

	warned := schema.Validate(header, adapter(schema.UnknownWarn))
	require.True(t, warned.OK)
	require.Len(t, warned.Warnings, 1)

	rejected := schema.Validate(header, adapter(schema.UnknownReject))
	require.False(t, rejected.OK)

	ignored := schema.Validate(header, adapter(schema.UnknownIgnore))
	require.True(t, ignored.OK)
	require.Empty(t, ignored.Warnings)
}
