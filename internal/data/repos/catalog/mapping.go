package catalog

import (
	"gorm.io/gorm"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// MappingRepo reads identifier mappings joined to the pages they name. Lookups that find
// nothing return a nil mapping and a nil error.
type MappingRepo interface {
	ByDocumentID(dbc dbctx.Context, id int64) (*types.IdentifierMapping, error)
	ByEntityID(dbc dbctx.Context, entityID string) (*types.IdentifierMapping, error)
	ByTitle(dbc dbctx.Context, title string) (*types.IdentifierMapping, error)
	// ByTitles resolves every title in one query; unknown titles are absent from the result.
	ByTitles(dbc dbctx.Context, titles []string) ([]types.IdentifierMapping, error)
}

type mappingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMappingRepo(db *gorm.DB, baseLog *logger.Logger) MappingRepo {
	return &mappingRepo{
		db:  db,
		log: baseLog.With("repo", "MappingRepo"),
	}
}

func (r *mappingRepo) base(dbc dbctx.Context) *gorm.DB {
	return dbc.DB(r.db).
		Table("wiki_page_to_wiki_data_mappings AS m").
		Select("m.wikipedia_id, m.wikipedia_title, m.wikidata_id").
		Joins("JOIN wikipedia_pages wp ON wp.title = m.wikipedia_title").
		Where("m.wikidata_id IS NOT NULL AND m.wikidata_id <> ''")
}

func (r *mappingRepo) first(q *gorm.DB) (*types.IdentifierMapping, error) {
	var rows []types.IdentifierMapping
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *mappingRepo) ByDocumentID(dbc dbctx.Context, id int64) (*types.IdentifierMapping, error) {
	return r.first(r.base(dbc).Where("m.wikipedia_id = ?", id))
}

func (r *mappingRepo) ByEntityID(dbc dbctx.Context, entityID string) (*types.IdentifierMapping, error) {
	if entityID == "" {
		return nil, nil
	}
	return r.first(r.base(dbc).Where("m.wikidata_id = ?", entityID))
}

func (r *mappingRepo) ByTitle(dbc dbctx.Context, title string) (*types.IdentifierMapping, error) {
	if title == "" {
		return nil, nil
	}
	return r.first(r.base(dbc).Where("m.wikipedia_title = ?", title))
}

func (r *mappingRepo) ByTitles(dbc dbctx.Context, titles []string) ([]types.IdentifierMapping, error) {
	var out []types.IdentifierMapping
	if len(titles) == 0 {
		return out, nil
	}
	if err := r.base(dbc).Where("m.wikipedia_title IN ?", titles).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
