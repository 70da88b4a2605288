package sponsors

import (
	"context"
	"testing"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	sponsors     map[string]*Sponsor
	sponsorships map[string]*Sponsorship
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sponsors:     make(map[string]*Sponsor),
		sponsorships: make(map[string]*Sponsorship),
	}
}

func (f *fakeRepo) Create(_ context.Context, params SponsorParams) (*Sponsor, error) {
	sponsor := &Sponsor{
		ULID:          params.ULID,
		OrganizerULID: params.OrganizerULID,
		Name:          params.Name,
		ContactEmail:  params.ContactEmail,
		Website:       params.Website,
		CreatedAt:     time.Now(),
	}
	f.sponsors[params.ULID] = sponsor
	return sponsor, nil
}

func (f *fakeRepo) GetByULID(_ context.Context, ulid string) (*Sponsor, error) {
	if sponsor, ok := f.sponsors[ulid]; ok {
		copied := *sponsor
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ string, _ Pagination) (ListResult, error) {
	return ListResult{}, nil
}

func (f *fakeRepo) Update(_ context.Context, ulid string, params SponsorParams) (*Sponsor, error) {
	sponsor, ok := f.sponsors[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	sponsor.Name = params.Name
	sponsor.ContactEmail = params.ContactEmail
	sponsor.Website = params.Website
	copied := *sponsor
	return &copied, nil
}

func (f *fakeRepo) Delete(_ context.Context, ulid string) error {
	delete(f.sponsors, ulid)
	return nil
}

func (f *fakeRepo) CreateSponsorship(_ context.Context, sponsorship Sponsorship) (*Sponsorship, error) {
	copied := sponsorship
	copied.CreatedAt = time.Now()
	f.sponsorships[sponsorship.ULID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeRepo) GetSponsorshipByULID(_ context.Context, ulid string) (*Sponsorship, error) {
	if sponsorship, ok := f.sponsorships[ulid]; ok {
		copied := *sponsorship
		return &copied, nil
	}
	return nil, ErrSponsorshipNotFound
}

func (f *fakeRepo) ListSponsorshipsByEvent(_ context.Context, eventULID string) ([]Sponsorship, error) {
	var result []Sponsorship
	for _, sponsorship := range f.sponsorships {
		if sponsorship.EventULID == eventULID {
			result = append(result, *sponsorship)
		}
	}
	return result, nil
}

func (f *fakeRepo) HasOpenSponsorship(_ context.Context, sponsorULID, eventULID string) (bool, error) {
	for _, sponsorship := range f.sponsorships {
		if sponsorship.SponsorULID == sponsorULID && sponsorship.EventULID == eventULID &&
			(sponsorship.Status == StatusPending || sponsorship.Status == StatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) SetSponsorshipStatus(_ context.Context, ulid string, status SponsorshipStatus, decidedBy string, decidedAt time.Time) error {
	sponsorship, ok := f.sponsorships[ulid]
	if !ok {
		return ErrSponsorshipNotFound
	}
	sponsorship.Status = status
	sponsorship.DecidedBy = decidedBy
	sponsorship.DecidedAt = &decidedAt
	return nil
}

type fakeDirectory struct {
	refs map[string]events.Ref
}

func (f *fakeDirectory) Ref(_ context.Context, ulid string) (events.Ref, error) {
	if ref, ok := f.refs[ulid]; ok {
		return ref, nil
	}
	return events.Ref{}, events.ErrNotFound
}

var (
	owner    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ1", Role: auth.RoleOrganizer}
	stranger = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ2", Role: auth.RoleOrganizer}
	admin    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ3", Role: auth.RoleAdmin}
)

const eventULID = "01HYX3KQW7ERTV9XNBM2P8QJE1"

func newTestService(repo Repository, status events.Status) *Service {
	directory := &fakeDirectory{refs: map[string]events.Ref{
		eventULID: {ULID: eventULID, OrganizerULID: owner.ULID, Status: status},
	}}
	return NewService(repo, directory, zerolog.Nop())
}

func createSponsor(t *testing.T, svc *Service, actor auth.Actor) *Sponsor {
	t.Helper()
	sponsor, err := svc.Create(context.Background(), actor, Input{
		Name:         "Northwind Brewing",
		ContactEmail: "sponsorships@northwind.test",
		Website:      "https://northwind.test",
	})
	require.NoError(t, err)
	return sponsor
}

func pledge(t *testing.T, svc *Service, actor auth.Actor, sponsorULID string, tier string, amount int64) *Sponsorship {
	t.Helper()
	sponsorship, err := svc.Pledge(context.Background(), actor, PledgeInput{
		SponsorULID: sponsorULID,
		EventULID:   eventULID,
		Tier:        tier,
		AmountCents: amount,
	})
	require.NoError(t, err)
	return sponsorship
}

func TestCreateSponsorRequiresName(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	_, err := svc.Create(context.Background(), owner, Input{Name: "  "})
	require.Error(t, err)
}

func TestCreateSponsorRejectsBadWebsite(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	_, err := svc.Create(context.Background(), owner, Input{Name: "Northwind", Website: "ftp://northwind.test"})
	require.Error(t, err)
}

func TestUpdateSponsorRejectsBadWebsite(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)

	_, err := svc.Update(context.Background(), owner, sponsor.ULID, Input{Name: "Acme", Website: "ftp://acme.example"})
	require.Error(t, err)

	var fieldErr FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "website", fieldErr.Field)
}

func TestGetSponsorTenancy(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)

	_, err := svc.Get(context.Background(), stranger, sponsor.ULID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), admin, sponsor.ULID)
	require.NoError(t, err)
}

func TestPledgeCreatesPendingSponsorship(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)

	sponsorship := pledge(t, svc, owner, sponsor.ULID, "gold", 250_000)
	require.Equal(t, StatusPending, sponsorship.Status)
	require.Equal(t, TierGold, sponsorship.Tier)
	require.Equal(t, int64(250_000), sponsorship.AmountCents)
}

func TestPledgeRejectsUnknownTier(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)

	_, err := svc.Pledge(context.Background(), owner, PledgeInput{
		SponsorULID: sponsor.ULID,
		EventULID:   eventULID,
		Tier:        "diamond",
	})
	require.Error(t, err)
}

func TestPledgeRejectsDuplicates(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)

	pledge(t, svc, owner, sponsor.ULID, "silver", 50_000)

	_, err := svc.Pledge(context.Background(), owner, PledgeInput{
		SponsorULID: sponsor.ULID,
		EventULID:   eventULID,
		Tier:        "gold",
		AmountCents: 100_000,
	})
	require.ErrorIs(t, err, ErrDuplicateSponsorship)
}

func TestPledgeRejectsClosedEvent(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusCompleted)
	sponsor := createSponsor(t, svc, owner)

	_, err := svc.Pledge(context.Background(), owner, PledgeInput{
		SponsorULID: sponsor.ULID,
		EventULID:   eventULID,
		Tier:        "bronze",
	})
	require.ErrorIs(t, err, ErrEventClosed)
}

func TestDecideApprovesPendingSponsorship(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)
	sponsorship := pledge(t, svc, owner, sponsor.ULID, "platinum", 1_000_000)

	decided, err := svc.Decide(context.Background(), owner, sponsorship.ULID, true)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, owner.ULID, decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	// Already decided sponsorships cannot be re-decided.
	_, err = svc.Decide(context.Background(), owner, sponsorship.ULID, false)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestDecideRequiresEventOwner(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)
	sponsorship := pledge(t, svc, owner, sponsor.ULID, "gold", 200_000)

	_, err := svc.Decide(context.Background(), stranger, sponsorship.ULID, true)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestWithdrawPendingSponsorship(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	sponsor := createSponsor(t, svc, owner)
	sponsorship := pledge(t, svc, owner, sponsor.ULID, "bronze", 10_000)

	withdrawn, err := svc.Withdraw(context.Background(), owner, sponsorship.ULID)
	require.NoError(t, err)
	require.Equal(t, StatusWithdrawn, withdrawn.Status)
}

func TestApprovedIncomeSumsApprovedOnly(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	first := createSponsor(t, svc, owner)
	second, err := svc.Create(context.Background(), owner, Input{Name: "Acme Beverages"})
	require.NoError(t, err)

	approved := pledge(t, svc, owner, first.ULID, "gold", 250_000)
	pledge(t, svc, owner, second.ULID, "silver", 50_000)

	_, err = svc.Decide(context.Background(), owner, approved.ULID, true)
	require.NoError(t, err)

	total, err := svc.ApprovedIncome(context.Background(), eventULID)
	require.NoError(t, err)
	require.Equal(t, int64(250_000), total)
}

func TestCountApprovedSponsorships(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	first := createSponsor(t, svc, owner)
	second, err := svc.Create(context.Background(), owner, Input{Name: "Acme Beverages"})
	require.NoError(t, err)

	approved := pledge(t, svc, owner, first.ULID, "gold", 250_000)
	pledge(t, svc, owner, second.ULID, "silver", 50_000)

	_, err = svc.Decide(context.Background(), owner, approved.ULID, true)
	require.NoError(t, err)

	count, err := svc.CountApproved(context.Background(), eventULID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
