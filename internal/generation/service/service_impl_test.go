package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/finovo/leaseflow/internal/clock"
	"github.com/finovo/leaseflow/internal/compiler"
	"github.com/finovo/leaseflow/internal/config"
	customerdomain "github.com/finovo/leaseflow/internal/customer/domain"
	customerrepo "github.com/finovo/leaseflow/internal/customer/repository"
	customersvc "github.com/finovo/leaseflow/internal/customer/service"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	templaterepo "github.com/finovo/leaseflow/internal/doctemplate/repository"
	templatesvc "github.com/finovo/leaseflow/internal/doctemplate/service"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	"github.com/finovo/leaseflow/internal/generation/repository"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	leaserrepo "github.com/finovo/leaseflow/internal/leaser/repository"
	leasersvc "github.com/finovo/leaseflow/internal/leaser/service"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	offerrepo "github.com/finovo/leaseflow/internal/offer/repository"
	offersvc "github.com/finovo/leaseflow/internal/offer/service"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const companyID = snowflake.ID(1)

type memoryAssets struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryAssets() *memoryAssets {
	return &memoryAssets{objects: make(map[string][]byte)}
}

func (m *memoryAssets) Upload(_ context.Context, key string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
	return "/assets/" + key, nil
}

func (m *memoryAssets) Fetch(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[ref[len("/assets/"):]]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return content, nil
}

func (m *memoryAssets) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, strings.TrimPrefix(ref, "/assets/"))
	return nil
}

// stubRasterizer fails a configurable number of times before producing bytes.
// With block set it parks until the context expires instead.
type stubRasterizer struct {
	mu       sync.Mutex
	failures int
	calls    int
	block    bool
}

func (r *stubRasterizer) Rasterize(ctx context.Context, _ *compiler.RenderableDocument) ([]byte, error) {
	r.mu.Lock()
	r.calls++
	failing := r.calls <= r.failures
	blocked := r.block
	r.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failing {
		return nil, errors.New("renderer unavailable")
	}
	return []byte("%PDF-1.7 rendered"), nil
}

type fixture struct {
	db         *gorm.DB
	genID      *snowflake.Node
	clock      *clock.FakeClock
	assets     *memoryAssets
	rasterizer *stubRasterizer
	customers  customerdomain.Service
	leasers    leaserdomain.Service
	offers     offerdomain.Service
	templates  templatedomain.Service
	svc        generationdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&leaserdomain.Leaser{},
		&leaserdomain.LeaserRange{},
		&offerdomain.Offer{},
		&templatedomain.DocumentTemplate{},
		&generationdomain.GeneratedDocument{},
	))

	genID, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	assets := newMemoryAssets()
	rasterizer := &stubRasterizer{}
	logger := zap.NewNop()

	customers := customersvc.NewService(customersvc.Params{
		DB: db, Log: logger, GenID: genID, Repo: customerrepo.Provide(),
	})
	leasers := leasersvc.NewService(leasersvc.Params{
		DB: db, Log: logger, GenID: genID, Repo: leaserrepo.Provide(),
	})
	offers := offersvc.NewService(offersvc.Params{
		DB: db, Log: logger, GenID: genID, Repo: offerrepo.Provide(),
	})
	templates := templatesvc.NewService(templatesvc.Params{
		DB: db, Log: logger, GenID: genID, Clock: fake,
		Repo: templaterepo.Provide(), Assets: assets,
	})

	cfg := config.Config{
		AppName:                  "leaseflow",
		DefaultLocale:            "en",
		GenerationMaxAttempts:    3,
		GenerationInitialBackoff: time.Millisecond,
		GenerationTimeout:        5 * time.Second,
	}

	svc := NewService(Params{
		DB:         db,
		Log:        logger,
		GenID:      genID,
		Cfg:        cfg,
		Clock:      fake,
		Repo:       repository.Provide(),
		Offers:     offers,
		Customers:  customers,
		Leasers:    leasers,
		Templates:  templates,
		Rasterizer: rasterizer,
		Assets:     assets,
	})

	return &fixture{
		db:         db,
		genID:      genID,
		clock:      fake,
		assets:     assets,
		rasterizer: rasterizer,
		customers:  customers,
		leasers:    leasers,
		offers:     offers,
		templates:  templates,
		svc:        svc,
	}
}

func (f *fixture) ctx() context.Context {
	return orgcontext.WithCompanyID(context.Background(), companyID)
}

func placedField(id string, category templatedomain.Category, dataType templatedomain.DataType, page int) templatedomain.FieldSpec {
	return templatedomain.FieldSpec{
		ID:        id,
		Label:     id,
		DataType:  dataType,
		Category:  category,
		Page:      &page,
		Position:  templatedomain.Position{X: 50, Y: 100},
		Style:     templatedomain.Style{FontSize: 10},
		IsVisible: true,
	}
}

func (f *fixture) seedActiveTemplate(t *testing.T, fields templatedomain.FieldMap) *templatedomain.DocumentTemplate {
	t.Helper()

	now := f.clock.Now()
	tmpl := &templatedomain.DocumentTemplate{
		ID:                f.genID.Generate(),
		CompanyID:         companyID,
		Name:              "Lease agreement",
		SourceDocumentURL: "",
		Fields:            datatypes.NewJSONType(fields),
		Pages:             datatypes.NewJSONType([]templatedomain.PageSpec{{Index: 0}}),
		PageCount:         1,
		FileSize:          512,
		FileType:          "application/pdf",
		UploadedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(tmpl).Error)

	_, err := f.templates.Activate(f.ctx(), tmpl.ID.String())
	require.NoError(t, err)
	return tmpl
}

// seedOffer creates the client (without a phone number), the leaser and a
// 2500 offer against it.
func (f *fixture) seedOffer(t *testing.T, amount string) *offerdomain.Offer {
	t.Helper()
	ctx := f.ctx()

	client, err := f.customers.Create(ctx, customerdomain.CreateRequest{
		Name:  "Acme Logistics AS",
		Email: "post@acme.example",
	})
	require.NoError(t, err)

	leaser, err := f.leasers.Create(ctx, leaserdomain.CreateRequest{
		Name: "Nordic Finance",
		Ranges: []leaserdomain.RangeInput{
			{Min: decimal.RequireFromString("0"), Max: decimal.RequireFromString("1000"), Coefficient: decimal.RequireFromString("5.0")},
			{Min: decimal.RequireFromString("1000.01"), Max: decimal.RequireFromString("5000"), Coefficient: decimal.RequireFromString("4.0")},
		},
	})
	require.NoError(t, err)

	offer, err := f.offers.Create(ctx, offerdomain.CreateRequest{
		ClientID:       client.ID.String(),
		LeaserID:       leaser.ID,
		Number:         "TIL-2024-0042",
		FinancedAmount: amount,
	})
	require.NoError(t, err)
	return offer
}

func standardFields() templatedomain.FieldMap {
	return templatedomain.FieldMap{
		"name":            placedField("name", templatedomain.CategoryClient, templatedomain.DataTypeText, 0),
		"phone":           placedField("phone", templatedomain.CategoryClient, templatedomain.DataTypeText, 0),
		"financed_amount": placedField("financed_amount", templatedomain.CategoryOffer, templatedomain.DataTypeCurrency, 0),
		"monthly_payment": placedField("monthly_payment", templatedomain.CategoryComputed, templatedomain.DataTypeCurrency, 0),
	}
}

func TestGenerate_StoresDocumentDespiteMissingValues(t *testing.T) {
	f := newFixture(t)
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "2500")

	resp, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, generationdomain.StatusStored, resp.Status)
	assert.Contains(t, resp.MissingFields, "phone")
	assert.NotEmpty(t, resp.StorageRef)
	require.NotNil(t, resp.GeneratedAt)

	content, err := f.svc.Download(f.ctx(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 rendered"), content)
}

func TestGenerate_SnapshotSurvivesReactivation(t *testing.T) {
	f := newFixture(t)
	original := f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "2500")

	resp, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.NoError(t, err)

	// A later activation must not rewrite history.
	f.seedActiveTemplate(t, standardFields())

	reloaded, err := f.svc.Get(f.ctx(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID.String(), reloaded.TemplateID)

	var stored generationdomain.GeneratedDocument
	require.NoError(t, f.db.Where("id = ?", resp.ID).First(&stored).Error)
	snapshot := stored.TemplateSnapshot.Data()
	assert.Equal(t, original.ID.String(), snapshot.TemplateID)
	assert.Len(t, snapshot.Fields, len(standardFields()))
}

func TestGenerate_NoActiveTemplate(t *testing.T) {
	f := newFixture(t)
	offer := f.seedOffer(t, "2500")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.ErrorIs(t, err, templatedomain.ErrNoActiveTemplate)

	docs, err := f.svc.ListByOffer(f.ctx(), offer.ID.String())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, generationdomain.StatusFailed, docs[0].Status)

	var stored generationdomain.GeneratedDocument
	require.NoError(t, f.db.Where("id = ?", docs[0].ID).First(&stored).Error)
	assert.True(t, stored.UpdatedAt.Equal(f.clock.Now()), "failure timestamp %s", stored.UpdatedAt)
}

func TestGenerate_AmountOutOfRangeFailsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "9999")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.ErrorIs(t, err, pricing.ErrOutOfRange)
	assert.Equal(t, 0, f.rasterizer.calls)
}

func TestGenerate_CorruptRangeTableFailsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "950")

	// Overwrite the stored table with overlapping rows; only a bad import can
	// produce this, and the pipeline must surface it as a data error rather
	// than an infrastructure failure.
	require.NoError(t, f.db.Where("leaser_id = ?", offer.LeaserID).Delete(&leaserdomain.LeaserRange{}).Error)
	corrupt := []leaserdomain.LeaserRange{
		{ID: f.genID.Generate(), LeaserID: offer.LeaserID, Position: 0, MinAmount: decimal.RequireFromString("0"), MaxAmount: decimal.RequireFromString("1000"), Coefficient: decimal.RequireFromString("5.0")},
		{ID: f.genID.Generate(), LeaserID: offer.LeaserID, Position: 1, MinAmount: decimal.RequireFromString("900"), MaxAmount: decimal.RequireFromString("5000"), Coefficient: decimal.RequireFromString("4.0")},
	}
	require.NoError(t, f.db.Create(&corrupt).Error)

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.ErrorIs(t, err, pricing.ErrInvalidRangeSet)
	assert.NotErrorIs(t, err, generationdomain.ErrGenerationFailed)
	assert.Equal(t, 0, f.rasterizer.calls)
}

func TestGenerate_CallerTimeoutBoundsRun(t *testing.T) {
	f := newFixture(t)
	f.rasterizer.block = true
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "2500")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{
		OfferID:        offer.ID.String(),
		TimeoutSeconds: 1,
	})
	require.ErrorIs(t, err, generationdomain.ErrGenerationTimeout)

	docs, err := f.svc.ListByOffer(f.ctx(), offer.ID.String())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, generationdomain.StatusFailed, docs[0].Status)
}

func TestDeadline_CallerCannotExtendCeiling(t *testing.T) {
	f := newFixture(t)
	svc := f.svc.(*Service)

	assert.Equal(t, 5*time.Second, svc.deadline(generationdomain.Request{}))
	assert.Equal(t, time.Second, svc.deadline(generationdomain.Request{TimeoutSeconds: 1}))
	assert.Equal(t, 5*time.Second, svc.deadline(generationdomain.Request{TimeoutSeconds: 60}))
}

func TestGenerate_RetriesTransientRasterizeFailures(t *testing.T) {
	f := newFixture(t)
	f.rasterizer.failures = 2
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "2500")

	resp, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, generationdomain.StatusStored, resp.Status)
	assert.Equal(t, 3, f.rasterizer.calls)
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.rasterizer.failures = 10
	f.seedActiveTemplate(t, standardFields())
	offer := f.seedOffer(t, "2500")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.ErrorIs(t, err, generationdomain.ErrGenerationFailed)
	assert.Equal(t, 3, f.rasterizer.calls)

	docs, err := f.svc.ListByOffer(f.ctx(), offer.ID.String())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, generationdomain.StatusFailed, docs[0].Status)
	assert.NotEmpty(t, docs[0].FailureReason)
}

func TestGenerate_CompileFailureOnBrokenTemplate(t *testing.T) {
	f := newFixture(t)

	// A field pointing past the last page can only exist through a bad
	// import; the pipeline must still fail it cleanly.
	broken := standardFields()
	field := broken["name"]
	badPage := 7
	field.Page = &badPage
	broken["name"] = field
	f.seedActiveTemplate(t, broken)

	offer := f.seedOffer(t, "2500")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.ErrorIs(t, err, compiler.ErrCompile)
}

func TestDownload_UnstoredDocument(t *testing.T) {
	f := newFixture(t)
	offer := f.seedOffer(t, "2500")

	_, err := f.svc.Generate(f.ctx(), generationdomain.Request{OfferID: offer.ID.String()})
	require.Error(t, err)

	docs, err := f.svc.ListByOffer(f.ctx(), offer.ID.String())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = f.svc.Download(f.ctx(), docs[0].ID)
	require.ErrorIs(t, err, generationdomain.ErrNotStored)
}
