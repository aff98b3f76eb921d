package heartfile_test

import (
	"github.com/myrjola/hotline/internal/heartfile"
	"github.com/myrjola/hotline/internal/models"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.February, 14, 19, 0, 0, 0, time.UTC)
	heart, err := heartfile.Parse(strings.NewReader(`
id: alex
display_name: Alex
bio: Climber and amateur baker.
persona: playful and direct
expectations: Someone curious who laughs easily.
dealbreakers:
  - rudeness to waiters
  - "  "
questions:
  - text: What does a perfect Sunday look like?
  - text: Favourite book?
    required: false
`), now)
	require.NoError(t, err)
	require.Equal(t, "alex", heart.ID)
	require.Equal(t, "Alex", heart.DisplayName)
	require.Equal(t, []string{"rudeness to waiters"}, heart.Dealbreakers)
	require.Equal(t, []models.Question{
		{Text: "What does a perfect Sunday look like?", Required: true},
		{Text: "Favourite book?", Required: false},
	}, heart.Questions)
	require.Equal(t, now, heart.CreatedAt)
}

func TestParse_invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "missing id",
			yaml:    "display_name: Alex\nquestions: [{text: hi}]",
			wantErr: heartfile.ErrInvalidProfile,
		},
		{
			name:    "missing display name",
			yaml:    "id: alex\nquestions: [{text: hi}]",
			wantErr: heartfile.ErrInvalidProfile,
		},
		{
			name:    "no questions",
			yaml:    "id: alex\ndisplay_name: Alex",
			wantErr: heartfile.ErrInvalidProfile,
		},
		{
			name:    "blank question",
			yaml:    "id: alex\ndisplay_name: Alex\nquestions: [{text: ' '}]",
			wantErr: heartfile.ErrInvalidProfile,
		},
		{
			name:    "unknown key",
			yaml:    "id: alex\ndisplay_name: Alex\nage: 31\nquestions: [{text: hi}]",
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := heartfile.Parse(strings.NewReader(tt.yaml), time.Now())
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
