package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/handlers"
)

func TestOnRunPrint(t *testing.T) {
	var out bytes.Buffer

	err := OnRunPrint(context.Background(), &handlers.Env{Out: &out}, &Input{Message: "build done"})

	require.NoError(t, err)
	assert.Equal(t, "build done\n", out.String())
}

func TestRegister(t *testing.T) {
	h := handlers.New()
	(&Module{}).Register(h)

	_, ok := h.Lookup("print")
	assert.True(t, ok)
}
