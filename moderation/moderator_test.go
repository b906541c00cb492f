package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary avoids words contained in common ones ("es" inside "estafa")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"estafa", "idiota", "basura"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "Esto es una estafa total",
			expected: "Esto es una ****** total",
			words:    []string{"estafa"},
		},
		{
			name:     "Multiple occurrences",
			input:    "idiota idiota",
			expected: "****** ******",
			words:    []string{"idiota", "idiota"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Eres un 1.d.1.0.t.4 ok",
			expected: "Eres un *********** ok",
			words:    []string{"idiota"},
		},
		{
			name:     "Uppercase and noise, in order of appearance",
			input:    "B-A-S-U-R-A y E$TAFA",
			expected: "*********** y ******",
			words:    []string{"basura", "estafa"},
		},
		{
			name:     "Euro sign as a letter",
			input:    "€stafa",
			expected: "******",
			words:    []string{"estafa"},
		},
		{
			name:     "Nothing to censor",
			input:    "¿Llega el pedido hoy?",
			expected: "¿Llega el pedido hoy?",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_NoiseOnlyWordsIgnored(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given noise-only entries in the dictionary
	mod, err := NewModerator([]string{"...", ",,,", "", "estafa"}, replacementChar, log)
	req.NoError(err)

	content, words := mod.Censor("Una estafa.")
	req.Equal("Una ******.", content)
	req.Equal([]string{"estafa"}, words)

	// Then punctuation alone is never censored
	content, words = mod.Censor("Hola ...")
	req.Equal("Hola ...", content)
	req.Nil(words)
}
