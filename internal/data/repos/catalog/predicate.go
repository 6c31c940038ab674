package catalog

import (
	"gorm.io/gorm"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type PredicateRepo interface {
	// Get returns nil, nil when the predicate has no metadata row.
	Get(dbc dbctx.Context, id string) (*types.Predicate, error)
}

type predicateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPredicateRepo(db *gorm.DB, baseLog *logger.Logger) PredicateRepo {
	return &predicateRepo{
		db:  db,
		log: baseLog.With("repo", "PredicateRepo"),
	}
}

func (r *predicateRepo) Get(dbc dbctx.Context, id string) (*types.Predicate, error) {
	if id == "" {
		return nil, nil
	}
	var rows []types.Predicate
	if err := dbc.DB(r.db).
		Where("property_id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
