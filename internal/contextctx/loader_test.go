package contextctx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabsikabs/pinnokio/internal/errs"
	"github.com/kabsikabs/pinnokio/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(store.Config{Dialect: "sqlite", DSN: "file:contextctx_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoad_JoinsClientMandateERP(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)

	require.NoError(t, docs.UpsertClientRecord(ctx, &store.ClientRecord{UserID: "u1", ClientUUID: "cu-1"}))
	require.NoError(t, docs.UpsertMandate(ctx, &store.MandateRecord{
		MandateID: "m1", ClientUUID: "cu-1", ContactSpaceID: "c1",
		MandatePath: "mandates/acme", CompanyName: "Acme SA", DriveSpaceRoot: "drive-root",
	}))
	require.NoError(t, docs.UpsertERP(ctx, &store.ERPRecord{ERPID: "e1", MandateID: "m1", BankERP: "qonto"}))

	loader := NewLoader(docs)
	got, err := loader.Load(ctx, "u1", "c1")
	require.NoError(t, err)

	assert.Equal(t, "cu-1", got.ClientUUID)
	assert.Equal(t, "mandates/acme", got.MandatePath)
	assert.Equal(t, "qonto", got.BankERP)
	assert.Equal(t, "Acme SA", got.CompanyName)
	// unset mandate fields fall back to defaults
	assert.Equal(t, "google_drive", got.DMSSystem)
	assert.Equal(t, "webhook", got.CommunicationMode)
	assert.Equal(t, "firebase", got.LogCommunicationMode)
	assert.False(t, got.Empty())
}

func TestLoad_FallbackClientUUIDWhenClientMissing(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)

	// No client record: the loader derives a deterministic stand-in and
	// still joins the mandate under it.
	require.NoError(t, docs.UpsertMandate(ctx, &store.MandateRecord{
		MandateID: "m1", ClientUUID: "fallback_verylong", ContactSpaceID: "c1",
		MandatePath: "mandates/solo",
	}))

	loader := NewLoader(docs)
	got, err := loader.Load(ctx, "verylonguserid", "c1")
	require.NoError(t, err)
	assert.Equal(t, "fallback_verylong", got.ClientUUID)
	assert.Equal(t, "mandates/solo", got.MandatePath)
}

func TestLoad_NoMandateIsContextLoadError(t *testing.T) {
	docs := newTestStore(t)
	loader := NewLoader(docs)

	_, err := loader.Load(context.Background(), "u1", "unknown-company")
	require.Error(t, err)

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.KindContextLoad, e.Kind)
}

func TestContext_EmptyRequiresMandatePath(t *testing.T) {
	assert.True(t, (*Context)(nil).Empty())
	assert.True(t, (&Context{}).Empty())
	assert.False(t, (&Context{MandatePath: "mandates/acme"}).Empty())
}
