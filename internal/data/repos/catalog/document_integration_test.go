package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/kgsummary/internal/data/repos/testutil"
	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
)

// Concurrent claimers against real Postgres row locks must never share a document.
func TestDocumentRepoConcurrentClaimsAreDisjoint(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewDocumentRepo(db, testutil.Logger(t))

	const base = int64(9_000_000)
	const docs = 60
	for i := int64(0); i < docs; i++ {
		testutil.SeedDocument(t, ctx, db, base+i, fmt.Sprintf("Claim_Test_%d", i), "body")
	}
	t.Cleanup(func() {
		db.Where("id >= ? AND id < ?", base, base+docs).Delete(&types.Document{})
	})

	var (
		mu    sync.Mutex
		seen  = map[int64]string{}
		wg    sync.WaitGroup
		dupes []int64
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				refs, err := repo.Claim(dbctx.New(ctx), 7, time.Hour, worker)
				if err != nil {
					t.Errorf("%s claim: %v", worker, err)
					return
				}
				if len(refs) == 0 {
					return
				}
				mu.Lock()
				for _, r := range refs {
					if r.ID < base || r.ID >= base+docs {
						continue
					}
					if _, ok := seen[r.ID]; ok {
						dupes = append(dupes, r.ID)
					}
					seen[r.ID] = worker
				}
				mu.Unlock()
			}
		}(fmt.Sprintf("worker-%d", w))
	}
	wg.Wait()

	if len(dupes) > 0 {
		t.Fatalf("documents claimed twice: %v", dupes)
	}
	if len(seen) != docs {
		t.Fatalf("expected %d claimed documents, got %d", docs, len(seen))
	}
}
