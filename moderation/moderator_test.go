package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Censor_Replaces_Forbidden_Words(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"scam", "idiot"}, '*')
	req.NoError(err)

	// When a flagged word appears mid-sentence
	sanitized, found := moderator.Censor("this deal is a scam, run")

	// Then only that word is starred out
	req.Equal("this deal is a ****, run", sanitized)
	req.Equal([]string{"scam"}, found)
}

func Test_Censor_Defeats_Leet_Speak(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"scam"}, '*')
	req.NoError(err)

	sanitized, found := moderator.Censor("total $c4m right there")

	req.Equal("total **** right there", sanitized)
	req.Len(found, 1)
}

func Test_Censor_Leaves_Clean_Content_Alone(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"scam"}, '*')
	req.NoError(err)

	original := "is the calculus textbook still available?"
	sanitized, found := moderator.Censor(original)

	req.Equal(original, sanitized)
	req.Empty(found)
}

func Test_Language_Detection(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"scam"}, '*')
	req.NoError(err)

	req.Equal("en", moderator.Language("hello, is this textbook still available for pickup tomorrow?"))
	req.Equal("fr", moderator.Language("bonjour, est-ce que le manuel est toujours disponible demain ?"))
}

func Test_Load_Embedded_Word_Lists(t *testing.T) {
	req := require.New(t)

	data, err := LoadDefault()
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
}
