package qa

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keywordEmbedder struct{}

// Embed maps text onto two axes: fire-ness and flood-ness.
func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := []float32{0.1, 0.1}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "fire") {
		vec[0] = 1
	}
	if strings.Contains(lower, "flood") {
		vec[1] = 1
	}
	return vec, nil
}

var scenarioClauses = []string{
	"Clause A covers fire damage",
	"Clause B excludes flood damage",
}

func TestNewRetriever(t *testing.T) {
	t.Parallel()

	t.Run("rejects unknown strategies", func(t *testing.T) {
		t.Parallel()
		_, err := NewRetriever("graph", nil)
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))
	})

	t.Run("vector strategy requires an embedder", func(t *testing.T) {
		t.Parallel()
		_, err := NewRetriever("vector", nil)
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))
	})

	t.Run("defaults to the vector strategy", func(t *testing.T) {
		t.Parallel()
		r, err := NewRetriever("", keywordEmbedder{})
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestLexicalRetriever(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ranks the flood clause first for a flood question", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("lexical", nil)
		require.NoError(t, err)
		require.NoError(t, r.Build(ctx, scenarioClauses))

		matches, err := r.Search(ctx, "Does the policy cover flood damage?", 3)
		require.NoError(t, err)
		require.Len(t, matches, 2)

		assert.Equal(t, "Clause B excludes flood damage", matches[0].Clause)
		assert.Equal(t, 1, matches[0].Rank)
		assert.Equal(t, 2, matches[1].Rank)
		assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	})

	t.Run("similarities are non-increasing and within [0,1]", func(t *testing.T) {
		t.Parallel()

		clauses := []string{
			"premium payments are due monthly",
			"flood damage is excluded from coverage",
			"fire damage is covered up to the policy limit",
			"claims must be filed within thirty days",
		}
		r, err := NewRetriever("lexical", nil)
		require.NoError(t, err)
		require.NoError(t, r.Build(ctx, clauses))

		matches, err := r.Search(ctx, "what is covered for fire damage", 4)
		require.NoError(t, err)
		require.Len(t, matches, 4)
		for i, m := range matches {
			assert.GreaterOrEqual(t, m.Similarity, 0.0)
			assert.LessOrEqual(t, m.Similarity, 1.0)
			if i > 0 {
				assert.LessOrEqual(t, m.Similarity, matches[i-1].Similarity)
			}
		}
	})

	t.Run("ties preserve original clause order", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("lexical", nil)
		require.NoError(t, err)
		require.NoError(t, r.Build(ctx, []string{"alpha beta", "gamma delta"}))

		// Query shares no vocabulary: every similarity is zero.
		matches, err := r.Search(ctx, "omega", 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "alpha beta", matches[0].Clause)
		assert.Equal(t, "gamma delta", matches[1].Clause)
	})

	t.Run("search before build fails with a catchable error", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("lexical", nil)
		require.NoError(t, err)

		_, err = r.Search(ctx, "anything", 3)
		require.Error(t, err)
		assert.Equal(t, EINDEXNOTBUILT, ErrorCode(err))
	})

	t.Run("empty corpus fails the build", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("lexical", nil)
		require.NoError(t, err)

		err = r.Build(ctx, nil)
		require.Error(t, err)
		assert.Equal(t, EEMPTYCORPUS, ErrorCode(err))
	})
}

func TestVectorRetriever(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns nearest clauses by cosine similarity", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("vector", keywordEmbedder{})
		require.NoError(t, err)
		require.NoError(t, r.Build(ctx, scenarioClauses))

		matches, err := r.Search(ctx, "Does the policy cover flood damage?", 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "Clause B excludes flood damage", matches[0].Clause)
	})

	t.Run("truncates to top-k", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("vector", keywordEmbedder{})
		require.NoError(t, err)
		require.NoError(t, r.Build(ctx, []string{"fire one", "fire two", "flood three"}))

		matches, err := r.Search(ctx, "fire", 2)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("search before build fails with a catchable error", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("vector", keywordEmbedder{})
		require.NoError(t, err)

		_, err = r.Search(ctx, "anything", 3)
		require.Error(t, err)
		assert.Equal(t, EINDEXNOTBUILT, ErrorCode(err))
	})

	t.Run("empty corpus fails the build", func(t *testing.T) {
		t.Parallel()

		r, err := NewRetriever("vector", keywordEmbedder{})
		require.NoError(t, err)

		err = r.Build(ctx, []string{})
		require.Error(t, err)
		assert.Equal(t, EEMPTYCORPUS, ErrorCode(err))
	})
}
