package linking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/metrics"
	"go.pilab.hu/adlink/log"
)

// Submitter builds and persists the final selection record. This is the
// integrity boundary: the required selections are re-validated here even
// though the wizard already gates them.
type Submitter struct {
	selections domain.SelectionRepository
	cache      domain.ResourceCache
	logger     log.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(selections domain.SelectionRepository, cache domain.ResourceCache, logger log.Logger) *Submitter {
	return &Submitter{selections: selections, cache: cache, logger: logger}
}

// Submit assembles a SelectionRecord from the wizard's staged choices and
// performs one upsert keyed by (user id, mode), so a retried submission after
// a transient failure overwrites instead of duplicating. On failure the
// wizard state is left untouched; the caller discards the wizard only after
// success.
func (s *Submitter) Submit(ctx context.Context, w *Wizard, mode string) (*domain.SelectionRecord, error) {
	if mode == "" {
		mode = domain.DefaultLinkMode
	}
	snap := w.Snapshot()

	pageID := snap.SelectedID(domain.KindPage)
	adAccountID := snap.SelectedID(domain.KindAdAccount)
	pixelID := snap.SelectedID(domain.KindPixel)
	if pageID == "" || adAccountID == "" || pixelID == "" {
		return nil, linkerr.New(linkerr.KindValidationError, "Page, ad account and pixel are required before submitting.")
	}

	rec := &domain.SelectionRecord{
		ID:            uuid.NewString(),
		UserID:        snap.UserID,
		Mode:          mode,
		PageID:        pageID,
		PageName:      snap.Resources.FindName(domain.KindPage, pageID),
		AdAccountID:   adAccountID,
		AdAccountName: snap.Resources.FindName(domain.KindAdAccount, adAccountID),
		PixelID:       pixelID,
		PixelName:     snap.Resources.FindName(domain.KindPixel, pixelID),
		SubmittedAt:   time.Now().UTC(),
	}

	if id := snap.SelectedID(domain.KindSocialProfile); id != "" && id != domain.SocialProfileNone {
		rec.SocialProfileID = id
		rec.SocialProfileName = snap.Resources.FindName(domain.KindSocialProfile, id)
	}
	if id := snap.SelectedID(domain.KindCatalog); id != "" {
		rec.CatalogID = id
		rec.CatalogName = snap.Resources.FindName(domain.KindCatalog, id)
	}

	if err := s.selections.Upsert(ctx, rec); err != nil {
		s.logger.Error(ctx, "selection upsert failed", err, map[string]interface{}{
			"user_id": snap.UserID, "mode": mode,
		})
		return nil, linkerr.Wrap(linkerr.KindSubmissionError, linkerr.ErrSubmission.Reason, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, snap.UserID); err != nil {
			s.logger.Warn(ctx, "resource cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Info(ctx, "selection committed", map[string]interface{}{
		"user_id": snap.UserID, "mode": mode, "page_id": pageID, "ad_account_id": adAccountID,
	})
	metrics.IncSelectionsCommitted()
	return rec, nil
}
