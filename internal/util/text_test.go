package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Hey @bot RIDDLE ME THIS please", "riddle me this"))
	assert.True(t, ContainsFold("xxriddle me thisyy", "Riddle Me This"))
	assert.False(t, ContainsFold("riddle me that", "riddle me this"))
}

func TestMatchedTermsKeepsTermOrder(t *testing.T) {
	got := MatchedTerms("Founder & Developer", []string{"developer", "founder", "ceo"})
	assert.Equal(t, []string{"developer", "founder"}, got)
	assert.Nil(t, MatchedTerms("", []string{"developer"}))
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short, 280, 275, "..."))

	long := strings.Repeat("a", 300)
	got := Truncate(long, 280, 275, "...")
	assert.Equal(t, 278, Length(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateDoesNotSplitEmoji(t *testing.T) {
	s := strings.Repeat("⚠️", 10)
	got := Truncate(s, 5, 3, "...")
	assert.Equal(t, "⚠️⚠️⚠️...", got)
}
