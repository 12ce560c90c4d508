package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/finovo/leaseflow/internal/clock"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"github.com/finovo/leaseflow/internal/doctemplate/repository"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func (m *memoryAssets) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	genID  *snowflake.Node
	clock  *clock.FakeClock
	assets *memoryAssets
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&templatedomain.DocumentTemplate{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	assets := newMemoryAssets()

	svc := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  genID,
		Clock:  fake,
		Repo:   repository.Provide(),
		Assets: assets,
	}).(*Service)

	return &fixture{svc: svc, db: db, genID: genID, clock: fake, assets: assets}
}

func (f *fixture) ctx(companyID snowflake.ID) context.Context {
	return orgcontext.WithCompanyID(context.Background(), companyID)
}

func (f *fixture) seedTemplate(t *testing.T, companyID snowflake.ID, clientID *snowflake.ID, fields templatedomain.FieldMap) *templatedomain.DocumentTemplate {
	t.Helper()

	if fields == nil {
		fields = templatedomain.FieldMap{}
	}
	now := f.clock.Now()
	tmpl := &templatedomain.DocumentTemplate{
		ID:                f.genID.Generate(),
		CompanyID:         companyID,
		ClientID:          clientID,
		Name:              "Lease agreement",
		SourceDocumentURL: "/assets/templates/source.pdf",
		Fields:            datatypes.NewJSONType(fields),
		Pages:             datatypes.NewJSONType([]templatedomain.PageSpec{{Index: 0}, {Index: 1}}),
		PageCount:         2,
		FileSize:          1024,
		FileType:          "application/pdf",
		UploadedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(tmpl).Error)
	return tmpl
}

// onePagePDF assembles a single-page PDF with a correct xref table so the
// ingest path exercises the real parser.
func onePagePDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 4)
	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")

	xrefStart := b.Len()
	b.WriteString("xref\n0 4\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i < 4; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	b.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(strconv.Itoa(xrefStart))
	b.WriteString("\n%%EOF\n")
	return b.Bytes()
}

func TestIngest_RejectsNonPDF(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(f.ctx(1), templatedomain.IngestRequest{
		Name:     "Broken",
		FileName: "broken.docx",
		Content:  []byte("PK\x03\x04 not a pdf"),
	})
	require.ErrorIs(t, err, templatedomain.ErrUnsupportedSource)
}

func TestIngest_ExtractsPageCountAndStoresSource(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Ingest(f.ctx(1), templatedomain.IngestRequest{
		Name:     "Lease agreement",
		FileName: "lease.pdf",
		Content:  onePagePDF(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.PageCount)
	assert.False(t, resp.IsActive)
	assert.Equal(t, 1, f.assets.len())

	stored, err := f.assets.Fetch(context.Background(), resp.SourceDocumentURL)
	require.NoError(t, err)
	assert.Equal(t, onePagePDF(), stored)
}

type insertFailRepo struct {
	templatedomain.Repository
}

func (insertFailRepo) Insert(context.Context, *gorm.DB, *templatedomain.DocumentTemplate) error {
	return errors.New("insert rejected")
}

func TestIngest_FailedInsertLeavesNoAsset(t *testing.T) {
	f := newFixture(t)

	assets := newMemoryAssets()
	svc := NewService(Params{
		DB:     f.db,
		Log:    zap.NewNop(),
		GenID:  f.genID,
		Clock:  f.clock,
		Repo:   insertFailRepo{Repository: repository.Provide()},
		Assets: assets,
	}).(*Service)

	_, err := svc.Ingest(f.ctx(1), templatedomain.IngestRequest{
		Name:     "Lease agreement",
		FileName: "lease.pdf",
		Content:  onePagePDF(),
	})
	require.Error(t, err)
	assert.Equal(t, 0, assets.len())
}

func TestActivate_SingleActivePerScope(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	first := f.seedTemplate(t, 1, nil, nil)
	second := f.seedTemplate(t, 1, nil, nil)

	_, err := f.svc.Activate(ctx, first.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, second.ID.String())
	require.NoError(t, err)

	var active []templatedomain.DocumentTemplate
	require.NoError(t, f.db.Where("company_id = ? AND is_active = ?", snowflake.ID(1), true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestActivate_ConcurrentCallsLeaveExactlyOneActive(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	ids := make([]string, 8)
	for i := range ids {
		ids[i] = f.seedTemplate(t, 1, nil, nil).ID.String()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Activate(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	var count int64
	require.NoError(t, f.db.Model(&templatedomain.DocumentTemplate{}).
		Where("company_id = ? AND is_active = ?", snowflake.ID(1), true).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActivate_ClientScopeDoesNotTouchCompanyScope(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	companyWide := f.seedTemplate(t, 1, nil, nil)
	clientID := f.genID.Generate()
	clientScoped := f.seedTemplate(t, 1, &clientID, nil)

	_, err := f.svc.Activate(ctx, companyWide.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, clientScoped.ID.String())
	require.NoError(t, err)

	var active []templatedomain.DocumentTemplate
	require.NoError(t, f.db.Where("company_id = ? AND is_active = ?", snowflake.ID(1), true).Find(&active).Error)
	assert.Len(t, active, 2)
}

func TestResolveActive_ClientFallsBackToCompanyWide(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	companyWide := f.seedTemplate(t, 1, nil, nil)
	_, err := f.svc.Activate(ctx, companyWide.ID.String())
	require.NoError(t, err)

	clientID := f.genID.Generate()
	resolved, err := f.svc.ResolveActive(ctx, templatedomain.Scope{CompanyID: 1, ClientID: &clientID})
	require.NoError(t, err)
	assert.Equal(t, companyWide.ID, resolved.ID)
}

func TestResolveActive_NoActiveTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveActive(f.ctx(1), templatedomain.Scope{CompanyID: 1})
	require.ErrorIs(t, err, templatedomain.ErrNoActiveTemplate)
}

func TestResolveActive_CacheInvalidatedByActivation(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	first := f.seedTemplate(t, 1, nil, nil)
	_, err := f.svc.Activate(ctx, first.ID.String())
	require.NoError(t, err)

	resolved, err := f.svc.ResolveActive(ctx, templatedomain.Scope{CompanyID: 1})
	require.NoError(t, err)
	require.Equal(t, first.ID, resolved.ID)

	second := f.seedTemplate(t, 1, nil, nil)
	_, err = f.svc.Activate(ctx, second.ID.String())
	require.NoError(t, err)

	resolved, err = f.svc.ResolveActive(ctx, templatedomain.Scope{CompanyID: 1})
	require.NoError(t, err)
	assert.Equal(t, second.ID, resolved.ID)
}

func TestResolveActive_ClientScopeSeesNewCompanyWideActivation(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	first := f.seedTemplate(t, 1, nil, nil)
	_, err := f.svc.Activate(ctx, first.ID.String())
	require.NoError(t, err)

	// Warm the cache through a client-scoped lookup that falls back to the
	// company-wide template.
	clientID := f.genID.Generate()
	scope := templatedomain.Scope{CompanyID: 1, ClientID: &clientID}
	resolved, err := f.svc.ResolveActive(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, first.ID, resolved.ID)

	second := f.seedTemplate(t, 1, nil, nil)
	_, err = f.svc.Activate(ctx, second.ID.String())
	require.NoError(t, err)

	resolved, err = f.svc.ResolveActive(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, second.ID, resolved.ID)
}

func TestLoad_TenantScopeViolation(t *testing.T) {
	f := newFixture(t)

	other := f.seedTemplate(t, 2, nil, nil)

	_, err := f.svc.GetByID(f.ctx(1), other.ID.String())
	require.ErrorIs(t, err, templatedomain.ErrTenantScope)
}

func unplacedField(id string, category templatedomain.Category) templatedomain.FieldSpec {
	return templatedomain.FieldSpec{
		ID:        id,
		Label:     id,
		DataType:  templatedomain.DataTypeText,
		Category:  category,
		IsVisible: true,
	}
}

func TestPlaceField_ValidatesPageBounds(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	tmpl := f.seedTemplate(t, 1, nil, templatedomain.FieldMap{
		"name": unplacedField("name", templatedomain.CategoryClient),
	})

	_, err := f.svc.PlaceField(ctx, tmpl.ID.String(), templatedomain.PlaceFieldRequest{
		FieldID: "name",
		Page:    5,
	})
	require.ErrorIs(t, err, templatedomain.ErrInvalidPage)

	resp, err := f.svc.PlaceField(ctx, tmpl.ID.String(), templatedomain.PlaceFieldRequest{
		FieldID:  "name",
		Page:     1,
		Position: templatedomain.Position{X: 40, Y: 120},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Fields["name"].Page)
	assert.Equal(t, 1, *resp.Fields["name"].Page)
	assert.Equal(t, 40.0, resp.Fields["name"].Position.X)
}

func TestUnplaceField_KeepsFieldDefined(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	page := 0
	placed := unplacedField("name", templatedomain.CategoryClient)
	placed.Page = &page
	tmpl := f.seedTemplate(t, 1, nil, templatedomain.FieldMap{"name": placed})

	resp, err := f.svc.UnplaceField(ctx, tmpl.ID.String(), "name")
	require.NoError(t, err)
	field, ok := resp.Fields["name"]
	require.True(t, ok)
	assert.Nil(t, field.Page)
}

func TestCommitFields_AtomicBatch(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	tmpl := f.seedTemplate(t, 1, nil, templatedomain.FieldMap{
		"name": unplacedField("name", templatedomain.CategoryClient),
	})

	badPage := 9
	batch := []templatedomain.FieldSpec{
		unplacedField("name", templatedomain.CategoryClient),
		{
			ID:       "amount",
			DataType: templatedomain.DataTypeCurrency,
			Category: templatedomain.CategoryOffer,
			Page:     &badPage,
		},
	}

	_, err := f.svc.CommitFields(ctx, tmpl.ID.String(), batch)
	require.ErrorIs(t, err, templatedomain.ErrInvalidPage)

	// The failed batch must not have touched the stored layout.
	resp, err := f.svc.GetByID(ctx, tmpl.ID.String())
	require.NoError(t, err)
	assert.Len(t, resp.Fields, 1)
	_, ok := resp.Fields["amount"]
	assert.False(t, ok)
}

func TestCommitFields_RejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(1)

	tmpl := f.seedTemplate(t, 1, nil, nil)

	_, err := f.svc.CommitFields(ctx, tmpl.ID.String(), []templatedomain.FieldSpec{
		{ID: "x", DataType: templatedomain.DataTypeText, Category: "martian"},
	})
	require.ErrorIs(t, err, templatedomain.ErrInvalidField)
}
