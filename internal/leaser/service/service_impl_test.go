package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	"github.com/finovo/leaseflow/internal/leaser/repository"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) leaserdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&leaserdomain.Leaser{}, &leaserdomain.LeaserRange{}))

	genID, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: genID,
		Repo:  repository.Provide(),
	})
}

func testCtx() context.Context {
	return orgcontext.WithCompanyID(context.Background(), snowflake.ID(1))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func standardRanges() []leaserdomain.RangeInput {
	return []leaserdomain.RangeInput{
		{Min: dec("0"), Max: dec("1000"), Coefficient: dec("5.0")},
		{Min: dec("1000.01"), Max: dec("5000"), Coefficient: dec("4.0")},
	}
}

func TestCreate_PersistsRangeTable(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Create(testCtx(), leaserdomain.CreateRequest{
		Name:   "Nordic Finance",
		Ranges: standardRanges(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Ranges, 2)
	assert.True(t, resp.Ranges[1].Coefficient.Equal(dec("4.0")))
}

func TestCreate_RejectsOverlappingRanges(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(testCtx(), leaserdomain.CreateRequest{
		Name: "Overlap Capital",
		Ranges: []leaserdomain.RangeInput{
			{Min: dec("0"), Max: dec("1000"), Coefficient: dec("5.0")},
			{Min: dec("900"), Max: dec("5000"), Coefficient: dec("4.0")},
		},
	})
	require.ErrorIs(t, err, leaserdomain.ErrInvalidRangeSet)
}

func TestCreate_RejectsGapBetweenRanges(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(testCtx(), leaserdomain.CreateRequest{
		Name: "Gap Capital",
		Ranges: []leaserdomain.RangeInput{
			{Min: dec("0"), Max: dec("1000"), Coefficient: dec("5.0")},
			{Min: dec("1500"), Max: dec("5000"), Coefficient: dec("4.0")},
		},
	})
	require.ErrorIs(t, err, leaserdomain.ErrInvalidRangeSet)
}

func TestReplaceRanges_SwapsWholeTable(t *testing.T) {
	svc := newTestService(t)
	ctx := testCtx()

	created, err := svc.Create(ctx, leaserdomain.CreateRequest{
		Name:   "Nordic Finance",
		Ranges: standardRanges(),
	})
	require.NoError(t, err)

	resp, err := svc.ReplaceRanges(ctx, created.ID, []leaserdomain.RangeInput{
		{Min: dec("0"), Max: dec("10000"), Coefficient: dec("3.5")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Ranges, 1)
	assert.True(t, resp.Ranges[0].Max.Equal(dec("10000")))

	// The old table is gone, not merged.
	reloaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Ranges, 1)
}

func TestReplaceRanges_InvalidTableLeavesOldOne(t *testing.T) {
	svc := newTestService(t)
	ctx := testCtx()

	created, err := svc.Create(ctx, leaserdomain.CreateRequest{
		Name:   "Nordic Finance",
		Ranges: standardRanges(),
	})
	require.NoError(t, err)

	_, err = svc.ReplaceRanges(ctx, created.ID, []leaserdomain.RangeInput{
		{Min: dec("100"), Max: dec("50"), Coefficient: dec("3.5")},
	})
	require.ErrorIs(t, err, leaserdomain.ErrInvalidRangeSet)

	reloaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Ranges, 2)
}

func TestDeprecate_BlocksEditsButKeepsResolving(t *testing.T) {
	svc := newTestService(t)
	ctx := testCtx()

	created, err := svc.Create(ctx, leaserdomain.CreateRequest{
		Name:   "Nordic Finance",
		Ranges: standardRanges(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deprecate(ctx, created.ID))

	_, err = svc.ReplaceRanges(ctx, created.ID, standardRanges())
	require.ErrorIs(t, err, leaserdomain.ErrDeprecated)

	// Existing offers keep pricing against the retired leaser.
	set, err := svc.RangeSet(ctx, created.ID)
	require.NoError(t, err)
	quote, err := pricing.Resolve(set, dec("2500"))
	require.NoError(t, err)
	assert.True(t, quote.MonthlyPayment.Equal(dec("100.00")))
}

func TestRangeSet_UnknownLeaser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RangeSet(testCtx(), "12345")
	require.ErrorIs(t, err, leaserdomain.ErrNotFound)
}

func TestGet_OtherTenantNotFound(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(testCtx(), leaserdomain.CreateRequest{
		Name:   "Nordic Finance",
		Ranges: standardRanges(),
	})
	require.NoError(t, err)

	otherCtx := orgcontext.WithCompanyID(context.Background(), snowflake.ID(2))
	_, err = svc.Get(otherCtx, created.ID)
	require.ErrorIs(t, err, leaserdomain.ErrNotFound)
}
