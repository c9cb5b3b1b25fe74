package portals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestML() *MercadoLivreAdapter {
	store := newFakeStore(&Credential{Portal: PortalMercadoLivre, AccessToken: "tok", UserID: "123"})
	return NewMercadoLivreAdapter(testConfig(), store, &fakeRecorder{}, zap.NewNop())
}

func TestMLTransformVehicle(t *testing.T) {
	a := newTestML()
	item, err := a.TransformVehicle(context.Background(), testVehicle())
	require.NoError(t, err)

	assert.Equal(t, "Chevrolet Onix 1.0 LT 2021", item["title"])
	assert.Equal(t, "MLB1744", item["category_id"])
	assert.Equal(t, 65900.0, item["price"])
	assert.Equal(t, "BRL", item["currency_id"])
	assert.Equal(t, "classified", item["buying_mode"])
	assert.Equal(t, "free", item["listing_type_id"])
	assert.Equal(t, "used", item["condition"])

	pictures := item["pictures"].([]map[string]interface{})
	require.Len(t, pictures, 2)
	assert.Equal(t, "https://cdn.example.com/veiculos/4821-1.jpg", pictures[0]["source"])
}

func TestMLTransformAttributes(t *testing.T) {
	a := newTestML()
	item, err := a.TransformVehicle(context.Background(), testVehicle())
	require.NoError(t, err)

	attrs := item["attributes"].([]map[string]interface{})
	byID := make(map[string]string)
	for _, attr := range attrs {
		byID[attr["id"].(string)] = attr["value_name"].(string)
	}

	assert.Equal(t, "ABC1D23", byID["LICENSE_PLATE"])
	// Last 6 digits of renavam stand in for the chassis suffix
	assert.Equal(t, "678901", byID["VIN_LAST_DIGITS"])
	assert.Equal(t, "2021", byID["VEHICLE_YEAR"])
	assert.Equal(t, "42000 km", byID["KILOMETERS"])
	assert.Equal(t, "4", byID["DOORS"])
	assert.Equal(t, "Usado", byID["ITEM_CONDITION"])
}

func TestMLTransformZeroKm(t *testing.T) {
	a := newTestML()
	v := testVehicle()
	v.ZeroKm = true

	item, err := a.TransformVehicle(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "new", item["condition"])
}

func TestMLTransformCapsPictures(t *testing.T) {
	a := newTestML()
	v := testVehicle()
	v.Images = nil
	for i := 0; i < 20; i++ {
		v.Images = append(v.Images, "img.jpg")
	}

	item, err := a.TransformVehicle(context.Background(), v)
	require.NoError(t, err)
	assert.Len(t, item["pictures"], 12)
}

func TestAlphanumericUpper(t *testing.T) {
	assert.Equal(t, "ABC1D23", alphanumericUpper("abc-1d23"))
	assert.Equal(t, "", alphanumericUpper("---"))
}
