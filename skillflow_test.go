package skillflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/testutil/mocks"
)

func TestNew_DelegatesToQuick(t *testing.T) {
	eng, err := New(context.Background(), nil,
		WithProvider(mocks.NewMockProvider().WithResponse("It is a good day.")),
		WithEmbedder(mocks.NewStubEmbedder()),
	)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, skills.ModeHierarchical, eng.Registry().Mode())
	assert.NotNil(t, eng.Provider())
}
