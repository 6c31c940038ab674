package resolver

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type fakeMappings struct {
	rows  []types.IdentifierMapping
	calls map[string]int
	bulk  [][]string
}

func newFakeMappings(rows ...types.IdentifierMapping) *fakeMappings {
	return &fakeMappings{rows: rows, calls: map[string]int{}}
}

func (f *fakeMappings) find(match func(types.IdentifierMapping) bool) *types.IdentifierMapping {
	for i := range f.rows {
		if match(f.rows[i]) {
			m := f.rows[i]
			return &m
		}
	}
	return nil
}

func (f *fakeMappings) ByDocumentID(_ dbctx.Context, id int64) (*types.IdentifierMapping, error) {
	f.calls["document_id"]++
	return f.find(func(m types.IdentifierMapping) bool { return m.DocumentID == id }), nil
}

func (f *fakeMappings) ByEntityID(_ dbctx.Context, entityID string) (*types.IdentifierMapping, error) {
	f.calls["entity_id"]++
	return f.find(func(m types.IdentifierMapping) bool { return m.EntityID == entityID }), nil
}

func (f *fakeMappings) ByTitle(_ dbctx.Context, title string) (*types.IdentifierMapping, error) {
	f.calls["title"]++
	return f.find(func(m types.IdentifierMapping) bool { return m.Title == title }), nil
}

func (f *fakeMappings) ByTitles(_ dbctx.Context, titles []string) ([]types.IdentifierMapping, error) {
	f.bulk = append(f.bulk, titles)
	var out []types.IdentifierMapping
	for _, t := range titles {
		if m := f.find(func(m types.IdentifierMapping) bool { return m.Title == t }); m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

var (
	ada     = types.IdentifierMapping{DocumentID: 42, Title: "Ada_Lovelace", EntityID: "Q7259"}
	babbage = types.IdentifierMapping{DocumentID: 43, Title: "Charles_Babbage", EntityID: "Q9640"}
)

func TestResolveStrategyByShape(t *testing.T) {
	cases := []struct {
		identifier string
		want       strategy
	}{
		{"42", byDocumentID},
		{"Q7259", byEntityID},
		{"Ada_Lovelace", byTitle},
		{"Q12a", byTitle},
		{"q7259", byTitle},
		{"1984_(novel)", byTitle},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, strategyFor(tc.identifier), tc.identifier)
	}
}

func TestResolveTriesExactlyOneStrategy(t *testing.T) {
	repo := newFakeMappings(ada)
	r, err := New(logger.Nop(), repo, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()

	m, ok, err := r.Resolve(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ada, m)
	assert.Equal(t, map[string]int{"document_id": 1}, repo.calls)

	_, ok, err = r.Resolve(ctx, "Q99999999")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, repo.calls["entity_id"])
	assert.Zero(t, repo.calls["title"])
}

func TestResolveMemoizesHitsAcrossIdentifiers(t *testing.T) {
	repo := newFakeMappings(ada)
	r, err := New(logger.Nop(), repo, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := r.Resolve(ctx, "Ada_Lovelace")
	require.NoError(t, err)
	require.True(t, ok)

	for _, id := range []string{"Ada_Lovelace", "Q7259", "42"} {
		m, ok, err := r.Resolve(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ada, m)
	}
	assert.Equal(t, map[string]int{"title": 1}, repo.calls)
}

func TestBulkResolveUsesOneQueryForMisses(t *testing.T) {
	repo := newFakeMappings(ada, babbage)
	r, err := New(logger.Nop(), repo, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = r.Resolve(ctx, "Ada_Lovelace")
	require.NoError(t, err)

	got, err := r.BulkResolve(ctx, mapset.NewSet("Ada_Lovelace", "Charles_Babbage", "Nowhere"))
	require.NoError(t, err)
	assert.Equal(t, map[string]types.IdentifierMapping{
		"Ada_Lovelace":    ada,
		"Charles_Babbage": babbage,
	}, got)
	require.Len(t, repo.bulk, 1)
	assert.ElementsMatch(t, []string{"Charles_Babbage", "Nowhere"}, repo.bulk[0])

	_, err = r.BulkResolve(ctx, mapset.NewSet("Ada_Lovelace", "Charles_Babbage"))
	require.NoError(t, err)
	assert.Len(t, repo.bulk, 1, "fully cached set must not query")
}
