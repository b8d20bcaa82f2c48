package registry

import (
	"context"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-cli/internal/model"
)

// semanticIndex holds one in-memory chromem collection per category whose
// documents are the canonical terms embedded with that category's
// Vectorizer.
type semanticIndex struct {
	db          *chromem.DB
	collections map[model.Category]*chromem.Collection
	vectorizers map[model.Category]*Vectorizer
}

func buildSemanticIndex(ctx context.Context, terms map[model.Category][]string) (*semanticIndex, error) {
	idx := &semanticIndex{
		db:          chromem.NewDB(),
		collections: make(map[model.Category]*chromem.Collection),
		vectorizers: make(map[model.Category]*Vectorizer),
	}

	for _, cat := range model.Categories {
		names := terms[cat]
		vz := FitVectorizer(names)
		idx.vectorizers[cat] = vz

		embed := func(_ context.Context, text string) ([]float32, error) {
			vec := vz.Transform(text)
			if IsZero(vec) {
				return nil, eris.Errorf("registry: no known tokens in %q", text)
			}
			return vec, nil
		}
		coll, err := idx.db.CreateCollection(string(cat), map[string]string{"category": string(cat)}, embed)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: create %s collection", cat)
		}

		docs := make([]chromem.Document, 0, len(names))
		for i, name := range names {
			vec := vz.Transform(name)
			if IsZero(vec) {
				continue
			}
			docs = append(docs, chromem.Document{
				ID:        string(cat) + "-" + strconv.Itoa(i),
				Content:   name,
				Embedding: vec,
				Metadata:  map[string]string{"index": strconv.Itoa(i), "name": name},
			})
		}
		if len(docs) > 0 {
			if err := coll.AddDocuments(ctx, docs, 1); err != nil {
				return nil, eris.Wrapf(err, "registry: index %s terms", cat)
			}
		}
		idx.collections[cat] = coll
	}

	return idx, nil
}

// nearest returns the canonical term most similar to text. Ties keep the
// earliest-listed term.
func (s *semanticIndex) nearest(ctx context.Context, cat model.Category, text string) (string, float64, error) {
	coll, ok := s.collections[cat]
	if !ok || coll.Count() == 0 {
		return "", 0, nil
	}
	vec := s.vectorizers[cat].Transform(text)
	if IsZero(vec) {
		return "", 0, nil
	}

	results, err := coll.QueryEmbedding(ctx, vec, coll.Count(), nil, nil)
	if err != nil {
		return "", 0, eris.Wrapf(err, "registry: query %s index", cat)
	}

	best, bestIdx, bestScore := "", -1, float32(-1)
	for _, r := range results {
		i, err := strconv.Atoi(r.Metadata["index"])
		if err != nil {
			continue
		}
		if r.Similarity > bestScore || (r.Similarity == bestScore && i < bestIdx) {
			best, bestIdx, bestScore = r.Metadata["name"], i, r.Similarity
		}
	}
	return best, float64(bestScore), nil
}
