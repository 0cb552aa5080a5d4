package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteOffset(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		units int
		want  int
	}{
		{"ascii", "hi @jan", 7, 7},
		{"accent", "é @jan", 6, 7},
		{"emoji pair", "😀@j", 4, 6},
		{"after emoji", "😀@j", 2, 4},
		{"inside pair rounds up", "😀@j", 1, 4},
		{"negative", "abc", -3, 0},
		{"past end", "abc", 10, 3},
		{"empty", "", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ByteOffset(tt.text, tt.units))
		})
	}
}

func TestUTF16Offset(t *testing.T) {
	assert.Equal(t, 0, UTF16Offset("é", 0))
	assert.Equal(t, 1, UTF16Offset("é @jan", 2))
	assert.Equal(t, 2, UTF16Offset("😀@j", 4))
	assert.Equal(t, 4, UTF16Offset("😀@j", 99))

	for _, text := range []string{"hi @jan", "é @jan", "😀 @jane_smith ok"} {
		for u := 0; u <= UTF16Offset(text, len(text)); u++ {
			b := ByteOffset(text, u)
			assert.LessOrEqual(t, UTF16Offset(text, b)-u, 1, "%q at %d", text, u)
		}
	}
}

func TestCursorInUTF16FindsToken(t *testing.T) {
	text := "café @ja"
	tok, ok := FindAtCursor(text, ByteOffset(text, 8))
	assert.True(t, ok)
	assert.Equal(t, "ja", tok.Query)
}

func TestUTF16Mentions(t *testing.T) {
	text := "😀 @bob é @amy"
	got := UTF16Mentions(text, Extract(text))
	assert.Equal(t, []Mention{
		{Username: "bob", Start: 3, End: 7},
		{Username: "amy", Start: 10, End: 14},
	}, got)
}
