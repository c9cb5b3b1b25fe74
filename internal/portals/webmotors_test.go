package portals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebMotorsRESTIsPassive(t *testing.T) {
	recorder := &fakeRecorder{}
	store := newFakeStore(&Credential{Portal: PortalWebMotorsREST, AccessToken: "tok"})
	a := NewWebMotorsRESTAdapter(testConfig(), store, recorder, zap.NewNop())

	caps := a.Capabilities()
	assert.False(t, caps.Push)
	assert.True(t, caps.LeadPull)
	assert.True(t, caps.StatusUpdate)

	_, err := a.TransformVehicle(context.Background(), testVehicle())
	assert.ErrorIs(t, err, ErrPushNotSupported)

	_, err = a.PublishVehicle(context.Background(), testVehicle())
	assert.ErrorIs(t, err, ErrPushNotSupported)

	_, err = a.UpdateVehicle(context.Background(), "x1", testVehicle())
	assert.ErrorIs(t, err, ErrPushNotSupported)

	// Push rejection happens before any HTTP traffic
	assert.Empty(t, recorder.all())
}

func TestWebMotorsRESTStatusMapping(t *testing.T) {
	store := newFakeStore(&Credential{Portal: PortalWebMotorsREST, AccessToken: "tok"})
	a := NewWebMotorsRESTAdapter(testConfig(), store, &fakeRecorder{}, zap.NewNop())

	err := a.UpdateVehicleStatus(context.Background(), "x1", "unknown-status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported status")
}

func TestWMColor(t *testing.T) {
	code, ok := wmColor("Preto Fosco")
	assert.True(t, ok)
	assert.Equal(t, 1, code)

	code, ok = wmColor("BRANCO")
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, ok = wmColor("turquesa")
	assert.False(t, ok)
}

func TestWMFuel(t *testing.T) {
	cases := []struct {
		fuel string
		code int
	}{
		{"Flex", 1},
		{"Gasolina", 2},
		{"Etanol", 3},
		{"Diesel", 4},
		{"GNV", 5},
		{"Elétrico", 6},
	}
	for _, tc := range cases {
		code, ok := wmFuel(tc.fuel)
		assert.True(t, ok, tc.fuel)
		assert.Equal(t, tc.code, code, tc.fuel)
	}
}

func TestWMTransmission(t *testing.T) {
	// "automatizado" must resolve to its own code, not the automatic one
	code, ok := wmTransmission("Automatizado")
	assert.True(t, ok)
	assert.Equal(t, 4, code)

	code, ok = wmTransmission("Automático")
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	code, ok = wmTransmission("Manual")
	assert.True(t, ok)
	assert.Equal(t, 1, code)

	code, ok = wmTransmission("CVT")
	assert.True(t, ok)
	assert.Equal(t, 3, code)
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "12345678000190", digitsOnly("12.345.678/0001-90"))
}

func TestMatchCompact(t *testing.T) {
	items := []RefItem{
		{ID: 1, Name: "NewFiesta"},
		{ID: 2, Name: "HB20S"},
	}

	id, ok := matchCompact(items, "New Fiesta")
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = matchCompact(items, "hb20 s")
	assert.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = matchCompact(items, "Onix")
	assert.False(t, ok)
}
