package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_Builder(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("channel", NewStringSchema().WithDescription("target channel").WithDefault("#general")).
		AddProperty("count", NewNumberSchema()).
		AddRequired("channel")

	data, err := s.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaTypeObject, back.Type)
	assert.Equal(t, []string{"channel"}, back.Required)
	assert.Equal(t, "#general", back.Properties["channel"].Default)
	assert.Equal(t, SchemaTypeNumber, back.Properties["count"].Type)
}

func TestSchemaType_Valid(t *testing.T) {
	assert.True(t, SchemaTypeInteger.Valid())
	assert.True(t, SchemaTypeArray.Valid())
	assert.False(t, SchemaType("float").Valid())
	assert.False(t, SchemaType("").Valid())
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{not json"))
	assert.Error(t, err)
}
