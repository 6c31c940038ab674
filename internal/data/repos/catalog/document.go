package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

const maxErrorLen = 2000

// DocumentRepo is the work queue over wikipedia_pages.
type DocumentRepo interface {
	// Claim leases up to limit unprocessed documents, id ascending, skipping rows another
	// claimer has locked or leased within the last lease interval.
	Claim(dbc dbctx.Context, limit int, lease time.Duration, token string) ([]types.DocumentRef, error)
	// Renew restamps the lease on ids still held by token and returns how many it kept.
	Renew(dbc dbctx.Context, token string, ids []int64) (int64, error)
	MarkProcessed(dbc dbctx.Context, id int64) error
	MarkFailed(dbc dbctx.Context, id int64, reason string) error
	// RequeueFailed returns failed documents with attempts below maxAttempts to the queue.
	// maxAttempts <= 0 requeues every failed document.
	RequeueFailed(dbc dbctx.Context, maxAttempts int) (int64, error)
	Content(dbc dbctx.Context, id int64) (string, bool, error)
	CountByState(dbc dbctx.Context) (map[types.DocumentState]int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentRepo"),
	}
}

func (r *documentRepo) Claim(dbc dbctx.Context, limit int, lease time.Duration, token string) ([]types.DocumentRef, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	var claimed []types.DocumentRef
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var rows []types.Document
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Select("id", "title").
			Where("state = ?", types.StateUnprocessed)
		if lease > 0 {
			q = q.Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-lease))
		} else {
			q = q.Where("claimed_at IS NULL")
		}
		if err := q.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(rows))
		refs := make([]types.DocumentRef, 0, len(rows))
		for _, d := range rows {
			ids = append(ids, d.ID)
			refs = append(refs, types.DocumentRef{ID: d.ID, Title: d.Title})
		}
		if err := txx.Model(&types.Document{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"claimed_at":  now,
				"claim_token": token,
				"attempts":    gorm.Expr("attempts + 1"),
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		claimed = refs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *documentRepo) Renew(dbc dbctx.Context, token string, ids []int64) (int64, error) {
	if len(ids) == 0 || token == "" {
		return 0, nil
	}
	now := time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.Document{}).
		Where("id IN ?", ids).
		Where("claim_token = ?", token).
		Where("state = ?", types.StateUnprocessed).
		Updates(map[string]interface{}{
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *documentRepo) MarkProcessed(dbc dbctx.Context, id int64) error {
	return r.setState(dbc, id, map[string]interface{}{
		"state":      types.StateProcessed,
		"last_error": "",
	})
}

func (r *documentRepo) MarkFailed(dbc dbctx.Context, id int64, reason string) error {
	reason = truncateUTF8(strings.ToValidUTF8(reason, "\uFFFD"), maxErrorLen)
	return r.setState(dbc, id, map[string]interface{}{
		"state":         types.StateFailed,
		"last_error":    reason,
		"last_error_at": time.Now().UTC(),
	})
}

func (r *documentRepo) setState(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	updates["claimed_at"] = nil
	updates["claim_token"] = nil
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) RequeueFailed(dbc dbctx.Context, maxAttempts int) (int64, error) {
	q := dbc.DB(r.db).
		Model(&types.Document{}).
		Where("state = ?", types.StateFailed)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	res := q.Updates(map[string]interface{}{
		"state":       types.StateUnprocessed,
		"claimed_at":  nil,
		"claim_token": nil,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Info("Requeued failed documents", "count", res.RowsAffected, "max_attempts", maxAttempts)
	}
	return res.RowsAffected, nil
}

func (r *documentRepo) Content(dbc dbctx.Context, id int64) (string, bool, error) {
	var rows []types.Document
	if err := dbc.DB(r.db).
		Select("id", "content").
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Content, true, nil
}

func (r *documentRepo) CountByState(dbc dbctx.Context) (map[types.DocumentState]int64, error) {
	var rows []struct {
		State types.DocumentState
		N     int64
	}
	if err := dbc.DB(r.db).
		Model(&types.Document{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[types.DocumentState]int64{
		types.StateUnprocessed: 0,
		types.StateProcessed:   0,
		types.StateFailed:      0,
	}
	for _, row := range rows {
		out[row.State] = row.N
	}
	return out, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
