package vendors

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
	vendors      map[string]*Vendor
	applications map[string]*Application
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		vendors:      make(map[string]*Vendor),
		applications: make(map[string]*Application),
	}
}

func (f *fakeRepo) Create(_ context.Context, params VendorParams) (*Vendor, error) {
	vendor := &Vendor{
		ULID:          params.ULID,
		OrganizerULID: params.OrganizerULID,
		Name:          params.Name,
		Category:      params.Category,
		ContactEmail:  params.ContactEmail,
		Notes:         params.Notes,
		CreatedAt:     time.Now(),
	}
	f.vendors[params.ULID] = vendor
	return vendor, nil
}

func (f *fakeRepo) GetByULID(_ context.Context, ulid string) (*Vendor, error) {
	if vendor, ok := f.vendors[ulid]; ok {
		copied := *vendor
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ string, _ Pagination) (ListResult, error) {
	return ListResult{}, nil
}

func (f *fakeRepo) Update(_ context.Context, ulid string, params VendorParams) (*Vendor, error) {
	vendor, ok := f.vendors[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	vendor.Name = params.Name
	vendor.Category = params.Category
	vendor.ContactEmail = params.ContactEmail
	vendor.Notes = params.Notes
	copied := *vendor
	return &copied, nil
}

func (f *fakeRepo) Delete(_ context.Context, ulid string) error {
	delete(f.vendors, ulid)
	return nil
}

func (f *fakeRepo) CreateApplication(_ context.Context, application Application) (*Application, error) {
	copied := application
	copied.CreatedAt = time.Now()
	f.applications[application.ULID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeRepo) GetApplicationByULID(_ context.Context, ulid string) (*Application, error) {
	if application, ok := f.applications[ulid]; ok {
		copied := *application
		return &copied, nil
	}
	return nil, ErrApplicationNotFound
}

func (f *fakeRepo) ListApplicationsByEvent(_ context.Context, eventULID string) ([]Application, error) {
	var result []Application
	for _, application := range f.applications {
		if application.EventULID == eventULID {
			result = append(result, *application)
		}
	}
	return result, nil
}

func (f *fakeRepo) HasOpenApplication(_ context.Context, vendorULID, eventULID string) (bool, error) {
	for _, application := range f.applications {
		if application.VendorULID == vendorULID && application.EventULID == eventULID &&
			(application.Status == StatusPending || application.Status == StatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) SetApplicationStatus(_ context.Context, ulid string, status ApplicationStatus, decidedBy string, decidedAt time.Time) error {
	application, ok := f.applications[ulid]
	if !ok {
		return ErrApplicationNotFound
	}
	application.Status = status
	application.DecidedBy = decidedBy
	application.DecidedAt = &decidedAt
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

func createVendor(t *testing.T, svc *Service, actor auth.Actor) *Vendor {
	t.Helper()
	vendor, err := svc.Create(context.Background(), actor, Input{
		Name:         "Fine Catering Co",
		Category:     "catering",
		ContactEmail: "hello@finecatering.test",
	})
	require.NoError(t, err)
	return vendor
}

func TestCreateVendorRequiresName(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	_, err := svc.Create(context.Background(), owner, Input{Name: "  "})
	require.Error(t, err)
}

func TestCreateVendorRejectsBadEmail(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)

	_, err := svc.Create(context.Background(), owner, Input{Name: "Catering", ContactEmail: "not-an-email"})
	require.Error(t, err)
}

func TestUpdateVendorRejectsBadEmail(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	_, err := svc.Update(context.Background(), owner, vendor.ULID, Input{Name: "Catering", ContactEmail: "not-an-email"})
	require.Error(t, err)

	var fieldErr FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "contact_email", fieldErr.Field)
}

func TestGetVendorTenancy(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	_, err := svc.Get(context.Background(), stranger, vendor.ULID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), admin, vendor.ULID)
	require.NoError(t, err)
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	application, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "booth near entrance")
	require.NoError(t, err)
	require.Equal(t, StatusPending, application.Status)
	require.Equal(t, eventULID, application.EventULID)
}

func TestApplyRejectsDuplicates(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	_, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.ErrorIs(t, err, ErrDuplicateApplication)
}

func TestApplyRejectsClosedEvent(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusCancelled)
	vendor := createVendor(t, svc, owner)

	_, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.ErrorIs(t, err, ErrEventClosed)
}

func TestDecideApprovesPendingApplication(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	application, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), owner, application.ULID, true)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, owner.ULID, decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	// Already decided applications cannot be re-decided.
	_, err = svc.Decide(context.Background(), owner, application.ULID, false)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestDecideRequiresEventOwner(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	application, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), stranger, application.ULID, true)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestWithdrawPendingApplication(t *testing.T) {
	svc := newTestService(newFakeRepo(), events.StatusPublished)
	vendor := createVendor(t, svc, owner)

	application, err := svc.Apply(context.Background(), owner, vendor.ULID, eventULID, "")
	require.NoError(t, err)

	withdrawn, err := svc.Withdraw(context.Background(), owner, application.ULID)
	require.NoError(t, err)
	require.Equal(t, StatusWithdrawn, withdrawn.Status)
}

func TestCountApproved(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, events.StatusPublished)

	first := createVendor(t, svc, owner)
	second, err := svc.Create(context.Background(), owner, Input{Name: "Sound & Light"})
	require.NoError(t, err)

	app1, err := svc.Apply(context.Background(), owner, first.ULID, eventULID, "")
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), owner, second.ULID, eventULID, "")
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), owner, app1.ULID, true)
	require.NoError(t, err)

	count, err := svc.CountApproved(context.Background(), eventULID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
