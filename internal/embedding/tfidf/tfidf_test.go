package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Theft of movable property",
	"Voluntarily causing hurt",
	"Theft in dwelling house",
}

func unigrams() Options {
	return Options{NgramMin: 1, NgramMax: 1, MinDF: 1, MaxDFRatio: 1}
}

func TestPrepareBuildsSortedVocabulary(t *testing.T) {
	e := NewEmbedder(unigrams())
	require.NoError(t, e.Prepare(corpus))

	assert.Equal(t, []string{"causing", "dwelling", "house", "hurt", "movable", "property", "theft", "voluntarily"}, e.Terms())
	assert.Equal(t, 8, e.Dimension())

	theft, ok := e.IDF("theft")
	require.True(t, ok)
	hurt, _ := e.IDF("hurt")
	assert.InDelta(t, math.Log(4.0/3.0)+1, theft, 1e-12)
	assert.Greater(t, hurt, theft)

	_, ok = e.IDF("of")
	assert.False(t, ok, "stop words never enter the vocabulary")
}

func TestPrepareDropsNearUniversalTerms(t *testing.T) {
	opts := unigrams()
	opts.MaxDFRatio = 0.5
	e := NewEmbedder(opts)
	require.NoError(t, e.Prepare(corpus))

	assert.NotContains(t, e.Terms(), "theft")
}

func TestPrepareCapsVocabulary(t *testing.T) {
	opts := unigrams()
	opts.MaxFeatures = 1
	e := NewEmbedder(opts)
	require.NoError(t, e.Prepare(corpus))

	assert.Equal(t, []string{"theft"}, e.Terms())
}

func TestPrepareNgrams(t *testing.T) {
	opts := unigrams()
	opts.NgramMax = 2
	e := NewEmbedder(opts)
	require.NoError(t, e.Prepare(corpus))

	assert.Contains(t, e.Terms(), "movable property")
	assert.Contains(t, e.Terms(), "theft movable")
}

func TestPrepareErrors(t *testing.T) {
	e := NewEmbedder(DefaultOptions())
	assert.ErrorIs(t, e.Prepare(nil), ErrEmptyCorpus)
	assert.ErrorIs(t, e.Prepare([]string{"the of and", "a"}), ErrNoTerms)
}

func TestEmbed(t *testing.T) {
	e := NewEmbedder(unigrams())
	_, err := e.Embed("theft")
	require.ErrorIs(t, err, ErrNotPrepared)

	require.NoError(t, e.Prepare(corpus))

	vec, err := e.Embed("theft and hurt")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	norm := 0.0
	for _, w := range vec {
		norm += w * w
	}
	assert.InDelta(t, 1.0, norm, 1e-9)

	empty, err := e.Embed("my phone was taken")
	require.NoError(t, err)
	assert.Empty(t, empty, "unseen terms are dropped")
}

func TestEmbedIsDeterministic(t *testing.T) {
	e := NewEmbedder(DefaultOptions())
	require.NoError(t, e.Prepare(corpus))

	a, err := e.Embed("theft of property in a dwelling house")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		b, err := e.Embed("theft of property in a dwelling house")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
