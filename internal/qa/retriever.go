package qa

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

const DefaultTopK = 3

// Retriever indexes clause texts and returns the ones most similar to a
// question. Build must be called before Search. Implementations are cheap,
// request-scoped values; a shared instance would leak one request's document
// into another's answers.
type Retriever interface {
	Build(ctx context.Context, clauses []string) error
	Search(ctx context.Context, question string, topK int) ([]ClauseMatch, error)
}

// NewRetriever selects the retrieval strategy: "vector" embeds clauses with
// the shared embedding model, "lexical" scores TF-IDF cosine similarity.
func NewRetriever(strategy string, embedder EmbeddingsClient) (Retriever, error) {
	switch strategy {
	case "", "vector":
		if embedder == nil {
			return nil, Errorf(EINVALID, "vector strategy requires an embeddings client")
		}
		return &vectorRetriever{embedder: embedder}, nil
	case "lexical":
		return &lexicalRetriever{}, nil
	default:
		return nil, Errorf(EINVALID, "unknown retriever strategy %q", strategy)
	}
}

// -------- vector strategy --------

type vectorRetriever struct {
	embedder EmbeddingsClient
	clauses  []string
	vectors  [][]float32
	built    bool
}

func (r *vectorRetriever) Build(ctx context.Context, clauses []string) error {
	if len(clauses) == 0 {
		return Errorf(EEMPTYCORPUS, "no clauses to index")
	}

	vectors := make([][]float32, 0, len(clauses))
	for _, c := range clauses {
		vec, err := r.embedder.Embed(ctx, c)
		if err != nil {
			return WrapError(EUNAVAILABLE, err, "embed clause")
		}
		vectors = append(vectors, vec)
	}

	r.clauses = clauses
	r.vectors = vectors
	r.built = true
	return nil
}

func (r *vectorRetriever) Search(ctx context.Context, question string, topK int) ([]ClauseMatch, error) {
	if !r.built {
		return nil, Errorf(EINDEXNOTBUILT, "retriever index not built")
	}

	qvec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, WrapError(EUNAVAILABLE, err, "embed question")
	}

	matches := make([]ClauseMatch, len(r.clauses))
	for i, c := range r.clauses {
		matches[i] = ClauseMatch{Clause: c, Similarity: clamp01(cosine32(qvec, r.vectors[i]))}
	}
	return rankMatches(matches, topK), nil
}

func cosine32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// -------- lexical strategy --------

type lexicalRetriever struct {
	clauses []string
	vocab   map[string]int
	idf     []float64
	vectors []map[int]float64
	built   bool
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

func (r *lexicalRetriever) Build(ctx context.Context, clauses []string) error {
	if len(clauses) == 0 {
		return Errorf(EEMPTYCORPUS, "no clauses to index")
	}

	r.vocab = make(map[string]int)
	df := []int{}
	docs := make([][]string, len(clauses))
	for i, c := range clauses {
		docs[i] = tokenize(c)
		inDoc := make(map[int]bool)
		for _, tok := range docs[i] {
			id, ok := r.vocab[tok]
			if !ok {
				id = len(df)
				r.vocab[tok] = id
				df = append(df, 0)
			}
			if !inDoc[id] {
				inDoc[id] = true
				df[id]++
			}
		}
	}

	// Smoothed IDF, same formula sklearn uses.
	n := float64(len(clauses))
	r.idf = make([]float64, len(df))
	for id, count := range df {
		r.idf[id] = math.Log((1+n)/(1+float64(count))) + 1
	}

	r.vectors = make([]map[int]float64, len(clauses))
	for i, toks := range docs {
		r.vectors[i] = r.vectorize(toks)
	}

	r.clauses = clauses
	r.built = true
	return nil
}

func (r *lexicalRetriever) Search(ctx context.Context, question string, topK int) ([]ClauseMatch, error) {
	if !r.built {
		return nil, Errorf(EINDEXNOTBUILT, "retriever index not built")
	}

	qvec := r.vectorize(tokenize(question))
	matches := make([]ClauseMatch, len(r.clauses))
	for i, c := range r.clauses {
		matches[i] = ClauseMatch{Clause: c, Similarity: clamp01(sparseCosine(qvec, r.vectors[i]))}
	}
	return rankMatches(matches, topK), nil
}

// vectorize builds an L2-normalized tf-idf vector; tokens outside the fitted
// vocabulary are ignored.
func (r *lexicalRetriever) vectorize(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, tok := range tokens {
		if id, ok := r.vocab[tok]; ok {
			vec[id] += r.idf[id]
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for id := range vec {
			vec[id] /= norm
		}
	}
	return vec
}

func sparseCosine(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for id, v := range a {
		dot += v * b[id]
	}
	return dot
}

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// -------- shared helpers --------

// rankMatches sorts by descending similarity (stable, so ties keep clause
// order), truncates to topK and assigns ranks.
func rankMatches(matches []ClauseMatch, topK int) []ClauseMatch {
	if topK <= 0 {
		topK = DefaultTopK
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
