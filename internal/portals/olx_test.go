package portals

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOLX(recorder *fakeRecorder) *OLXAdapter {
	store := newFakeStore(&Credential{Portal: PortalOLX, AccessToken: "tok"})
	return NewOLXAdapter(testConfig(), store, recorder, zap.NewNop())
}

func TestOLXTransformVehicle(t *testing.T) {
	a := newTestOLX(&fakeRecorder{})
	ad, err := a.TransformVehicle(context.Background(), testVehicle())
	require.NoError(t, err)

	assert.Equal(t, "v4821", ad["id"])
	assert.Equal(t, 2020, ad["category"])
	assert.Equal(t, "Chevrolet Onix 2021", ad["subject"])
	assert.Equal(t, "Único dono, revisões em dia", ad["body"])
	assert.Equal(t, "s", ad["type"])
	assert.Equal(t, 65900, ad["price"])
	assert.Equal(t, []string{
		"https://cdn.example.com/veiculos/4821-1.jpg",
		"https://cdn.example.com/veiculos/4821-2.jpg",
	}, ad["images"])

	params := ad["params"].(map[string]interface{})
	assert.Equal(t, "2", params["cartype"]) // hatch
	assert.Equal(t, "1", params["gearbox"]) // manual
	assert.Equal(t, "3", params["fuel"])    // flex
	assert.Equal(t, "2", params["carcolor"])
	assert.Equal(t, 42000, params["mileage"])
	assert.Equal(t, 2021, params["regdate"])
}

func TestOLXTransformClipsLongText(t *testing.T) {
	a := newTestOLX(&fakeRecorder{})
	v := testVehicle()
	v.FipeModelName = strings.Repeat("X", 200)

	ad, err := a.TransformVehicle(context.Background(), v)
	require.NoError(t, err)
	assert.Len(t, ad["subject"], 90)
}

func TestOLXTransformCapsImages(t *testing.T) {
	a := newTestOLX(&fakeRecorder{})
	v := testVehicle()
	v.Images = nil
	for i := 0; i < 30; i++ {
		v.Images = append(v.Images, "img.jpg")
	}

	ad, err := a.TransformVehicle(context.Background(), v)
	require.NoError(t, err)
	assert.Len(t, ad["images"], 20)
}

func TestOLXTransformIsDeterministic(t *testing.T) {
	a := newTestOLX(&fakeRecorder{})
	first, err := a.TransformVehicle(context.Background(), testVehicle())
	require.NoError(t, err)
	second, err := a.TransformVehicle(context.Background(), testVehicle())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOLXFetchLeadsNotSupported(t *testing.T) {
	recorder := &fakeRecorder{}
	a := newTestOLX(recorder)

	_, err := a.FetchLeads(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrLeadPullNotSupported)
	// Rejected locally, no HTTP call recorded
	assert.Empty(t, recorder.all())
}

func TestOLXStatusActiveIsNoop(t *testing.T) {
	recorder := &fakeRecorder{}
	a := newTestOLX(recorder)

	// "active" needs no remote action on an import-based portal
	require.NoError(t, a.UpdateVehicleStatus(context.Background(), "v1", "active"))
	assert.Empty(t, recorder.all())
}

func TestOLXAuthenticateRequiresToken(t *testing.T) {
	store := newFakeStore()
	a := NewOLXAdapter(testConfig(), store, &fakeRecorder{}, zap.NewNop())
	assert.ErrorIs(t, a.Authenticate(context.Background()), ErrNotAuthenticated)
}

func TestParseImportError(t *testing.T) {
	assert.Equal(t, "user blocked for excessive requests",
		parseImportError(map[string]interface{}{"statusCode": float64(-2)}))
	assert.Equal(t, "insufficient ad slots remaining",
		parseImportError(map[string]interface{}{"statusCode": float64(-7)}))
	assert.Contains(t,
		parseImportError(map[string]interface{}{"statusCode": float64(-4), "errors": []interface{}{"subject"}}),
		"ad validation failed")
	assert.Equal(t, "custom",
		parseImportError(map[string]interface{}{"statusCode": float64(99), "statusMessage": "custom"}))
}
