package moderation

import (
	"chat-sync/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	// Given two dictionaries sharing a word, one with windows line endings
	loader := NewCensoredLoader(fstest.MapFS{
		"censored/es.txt":    {Data: []byte("idiota\r\nestafa\r\n\r\n")},
		"censored/fr.txt":    {Data: []byte("arnaque\nidiota\n")},
		"censored/README.md": {Data: []byte("not a dictionary")},
	})

	// When
	data, err := loader.LoadAll("censored")

	// Then
	req.NoError(err)
	req.Equal([]string{"arnaque", "estafa", "idiota"}, data.Words)
	req.Equal([]string{"es", "fr"}, data.Languages)
}

func TestCensoredLoader_Empty(t *testing.T) {
	req := require.New(t)
	loader := NewCensoredLoader(fstest.MapFS{"censored/es.txt": {Data: []byte("\n  \n")}})

	_, err := loader.LoadAll("censored")

	req.True(errors.Is(err, errors.ErrEmptyWords))
}

func TestCensoredLoader_Embedded(t *testing.T) {
	req := require.New(t)

	data, err := NewEmbeddedLoader().LoadAll("censored")

	req.NoError(err)
	req.Contains(data.Languages, "es")
	req.Contains(data.Words, "estafa")
}
