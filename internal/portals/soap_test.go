package portals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSOAPEnvelope(t *testing.T) {
	env := string(buildSOAPEnvelope("AutenticarUsuario", []soapParam{
		{Name: "pEmail", Value: "dealer@example.com"},
		{Name: "pSenha", Value: "a<b&c"},
		{Name: "pCNPJ", Value: "12345678000190"},
	}))

	assert.Contains(t, env, `<AutenticarUsuario xmlns="http://tempuri.org/">`)
	assert.Contains(t, env, "<pEmail>dealer@example.com</pEmail>")
	// XML escaping of special characters
	assert.Contains(t, env, "<pSenha>a&lt;b&amp;c</pSenha>")
	assert.Contains(t, env, `xmlns:soap12="http://www.w3.org/2003/05/soap-envelope"`)

	// Parameter order is preserved
	assert.Less(t, indexOf(env, "pEmail"), indexOf(env, "pSenha"))
	assert.Less(t, indexOf(env, "pSenha"), indexOf(env, "pCNPJ"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestBuildSOAPEnvelopeNestedAndTyped(t *testing.T) {
	env := string(buildSOAPEnvelope("IncluirCarro", []soapParam{
		{Name: "pAnuncio", Value: []soapParam{
			{Name: "CodigoMarca", Value: 7},
			{Name: "Preco", Value: 65900.0},
			{Name: "ZeroKm", Value: false},
			{Name: "Opcionais", Value: []int{1, 5, 9}},
		}},
	}))

	assert.Contains(t, env, "<pAnuncio><CodigoMarca>7</CodigoMarca>")
	assert.Contains(t, env, "<Preco>65900.00</Preco>")
	assert.Contains(t, env, "<ZeroKm>false</ZeroKm>")
	assert.Contains(t, env, "<Opcionais><int>1</int><int>5</int><int>9</int></Opcionais>")
}

func TestSoapFaultError(t *testing.T) {
	fault := []byte(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <soap:Fault>
      <soap:Reason><soap:Text xml:lang="en">Authentication failed</soap:Text></soap:Reason>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`)

	err := soapFaultError(fault)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")

	ok := []byte(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body><AutenticarUsuarioResponse/></soap:Body>
</soap:Envelope>`)
	assert.NoError(t, soapFaultError(ok))
}

func TestSoapLogPayload(t *testing.T) {
	out := soapLogPayload([]soapParam{
		{Name: "pHashAutenticacao", Value: "hash"},
		{Name: "pAnuncio", Value: []soapParam{
			{Name: "Placa", Value: "ABC1D23"},
		}},
	})

	assert.Equal(t, "hash", out["pHashAutenticacao"])
	nested := out["pAnuncio"].(map[string]interface{})
	assert.Equal(t, "ABC1D23", nested["Placa"])
}
