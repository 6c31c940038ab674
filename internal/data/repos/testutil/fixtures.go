package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64, title, content string) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:      id,
		Title:   title,
		Content: content,
		State:   types.StateUnprocessed,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedMapping(tb testing.TB, ctx context.Context, tx *gorm.DB, docID int64, title, entityID string) *types.IdentifierMapping {
	tb.Helper()
	m := &types.IdentifierMapping{DocumentID: docID, Title: title, EntityID: entityID}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mapping: %v", err)
	}
	return m
}

func SeedPredicate(tb testing.TB, ctx context.Context, tx *gorm.DB, id, label, description string) *types.Predicate {
	tb.Helper()
	p := &types.Predicate{ID: id, Label: label, Description: description}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed predicate: %v", err)
	}
	return p
}
