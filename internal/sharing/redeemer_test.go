package sharing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueAt(t *testing.T, store sharing.LinkStore, at time.Time, sel sharing.ExpirySelection, level models.AccessLevel) models.ShareLink {
	t.Helper()
	issuer := sharing.NewIssuer(store, "http://localhost", sharing.WithClock(fixedClock(at)))
	issued, err := issuer.Issue(context.Background(), sharing.IssueRequest{
		File:        sampleFile(),
		OwnerID:     "owner-1",
		Expiry:      sel,
		AccessLevel: level,
	})
	require.NoError(t, err)
	return issued.Link
}

func downloadCount(t *testing.T, store sharing.LinkStore, token string) int64 {
	t.Helper()
	link, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	return link.DownloadCount
}

func TestRedeemDownloadLink(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneHour}, models.AccessDownload)

	res, err := sharing.NewRedeemer(store).Redeem(context.Background(), link.Token, issuedAt.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, sharing.OutcomeRedeemed, res.Outcome)
	assert.True(t, res.Permissions.CanDownload)
	assert.Equal(t, "owner-1/file-1.pdf", res.FileRef)
	assert.Equal(t, "report.pdf", res.FileName)
	assert.Equal(t, int64(1), res.DownloadCount)
	assert.Equal(t, int64(1), downloadCount(t, store, link.Token))
}

func TestRedeemViewOnlyWithholdsLocator(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneDay}, models.AccessViewOnly)
	redeemer := sharing.NewRedeemer(store)

	res, err := redeemer.Redeem(context.Background(), link.Token, issuedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, sharing.OutcomeRedeemed, res.Outcome)
	assert.False(t, res.Permissions.CanDownload)
	assert.True(t, res.Permissions.CanViewMetadata)
	assert.Empty(t, res.FileRef)
	// View-only redemptions still count as a use.
	assert.Equal(t, int64(1), res.DownloadCount)

	info, err := redeemer.Inspect(context.Background(), link.Token, issuedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, info.FileRef)
}

func TestRedeemUnknownToken(t *testing.T) {
	redeemer := sharing.NewRedeemer(storage.NewMemoryLinkStore())

	for _, token := range []string{"", "does-not-exist"} {
		res, err := redeemer.Redeem(context.Background(), token, issuedAt)
		assert.ErrorIs(t, err, sharing.ErrLinkNotFound)
		assert.Equal(t, sharing.OutcomeNotFound, res.Outcome)
	}
}

func TestRedeemExpiredLeavesCountUnchanged(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneHour}, models.AccessDownload)

	res, err := sharing.NewRedeemer(store).Redeem(context.Background(), link.Token, issuedAt.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, sharing.ErrLinkExpired)
	assert.Equal(t, sharing.OutcomeExpired, res.Outcome)
	assert.Empty(t, res.FileRef)
	assert.Zero(t, downloadCount(t, store, link.Token))
}

func TestRedeemAtExactExpiryStillValid(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneHour}, models.AccessDownload)

	_, err := sharing.NewRedeemer(store).Redeem(context.Background(), link.Token, link.ExpiresAt)
	assert.NoError(t, err)
}

func TestRedeemDeactivatedLeavesCountUnchanged(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneWeek}, models.AccessDownload)
	require.NoError(t, store.Deactivate(context.Background(), link.Token, "owner-1"))

	res, err := sharing.NewRedeemer(store).Redeem(context.Background(), link.Token, issuedAt.Add(time.Hour))
	assert.ErrorIs(t, err, sharing.ErrLinkDeactivated)
	assert.Equal(t, sharing.OutcomeDeactivated, res.Outcome)
	assert.Zero(t, downloadCount(t, store, link.Token))
}

func TestExpiryIsCheckedBeforeActivation(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneHour}, models.AccessDownload)
	require.NoError(t, store.Deactivate(context.Background(), link.Token, "owner-1"))

	res, err := sharing.NewRedeemer(store).Redeem(context.Background(), link.Token, issuedAt.Add(2*time.Hour))
	assert.ErrorIs(t, err, sharing.ErrLinkExpired)
	assert.Equal(t, sharing.OutcomeExpired, res.Outcome)
}

func TestPermanentLinkOutlivesTestHorizon(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryPermanent}, models.AccessDownload)
	redeemer := sharing.NewRedeemer(store)

	for _, offset := range []time.Duration{0, 24 * time.Hour, 365 * 24 * time.Hour, 5 * 366 * 24 * time.Hour} {
		res, err := redeemer.Redeem(context.Background(), link.Token, issuedAt.Add(offset))
		require.NoError(t, err, "offset %s", offset)
		assert.Equal(t, sharing.OutcomeRedeemed, res.Outcome)
	}
}

func TestCustomThirtyMinuteScenario(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	sel := sharing.ExpirySelection{Selector: sharing.ExpiryCustom, Magnitude: 30, Unit: sharing.UnitMinutes}
	link := issueAt(t, store, issuedAt, sel, models.AccessDownload)
	require.Equal(t, issuedAt.Add(30*time.Minute), link.ExpiresAt)

	redeemer := sharing.NewRedeemer(store)

	res, err := redeemer.Redeem(context.Background(), link.Token, issuedAt.Add(29*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, sharing.OutcomeRedeemed, res.Outcome)

	res, err = redeemer.Redeem(context.Background(), link.Token, issuedAt.Add(31*time.Minute))
	assert.ErrorIs(t, err, sharing.ErrLinkExpired)
	assert.Equal(t, sharing.OutcomeExpired, res.Outcome)
}

func TestConcurrentRedemptionsAreAllCounted(t *testing.T) {
	const n = 100
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneDay}, models.AccessDownload)
	redeemer := sharing.NewRedeemer(store)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := redeemer.Redeem(context.Background(), link.Token, issuedAt.Add(time.Minute))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(n), downloadCount(t, store, link.Token))
}

func TestInspectDoesNotCount(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	link := issueAt(t, store, issuedAt, sharing.ExpirySelection{Selector: sharing.ExpiryOneDay}, models.AccessDownload)

	res, err := sharing.NewRedeemer(store).Inspect(context.Background(), link.Token, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, sharing.OutcomeRedeemed, res.Outcome)
	assert.Zero(t, downloadCount(t, store, link.Token))
}

func TestRecordWithUnknownLevelIsRefused(t *testing.T) {
	store := storage.NewMemoryLinkStore()
	require.NoError(t, store.Insert(context.Background(), models.ShareLink{
		Token:       "legacy",
		OwnerID:     "owner-1",
		AccessLevel: "edit",
		IsActive:    true,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(time.Hour),
	}))

	_, err := sharing.NewRedeemer(store).Redeem(context.Background(), "legacy", issuedAt)
	assert.ErrorIs(t, err, sharing.ErrLinkDeactivated)
	assert.Zero(t, downloadCount(t, store, "legacy"))
}
