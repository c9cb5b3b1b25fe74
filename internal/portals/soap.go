package portals

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// The WebMotors dealer webservice is a classic .asmx endpoint speaking
// SOAP 1.2 with the default tempuri namespace. Envelopes are built by hand;
// parameter order matters to the service, so params are an ordered slice,
// not a map.
const soapNamespace = "http://tempuri.org/"

type soapParam struct {
	Name  string
	Value interface{} // string, int, float64, bool, []soapParam or []int
}

func buildSOAPEnvelope(method string, params []soapParam) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap12:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">`)
	b.WriteString(`<soap12:Body>`)
	fmt.Fprintf(&b, `<%s xmlns="%s">`, method, soapNamespace)
	writeSOAPParams(&b, params)
	fmt.Fprintf(&b, `</%s>`, method)
	b.WriteString(`</soap12:Body></soap12:Envelope>`)
	return []byte(b.String())
}

func writeSOAPParams(b *strings.Builder, params []soapParam) {
	for _, p := range params {
		fmt.Fprintf(b, "<%s>", p.Name)
		switch v := p.Value.(type) {
		case []soapParam:
			writeSOAPParams(b, v)
		case []int:
			for _, n := range v {
				fmt.Fprintf(b, "<int>%d</int>", n)
			}
		case string:
			xml.EscapeText(b, []byte(v))
		case bool:
			b.WriteString(strconv.FormatBool(v))
		case int:
			b.WriteString(strconv.Itoa(v))
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
		default:
			xml.EscapeText(b, []byte(fmt.Sprintf("%v", v)))
		}
		fmt.Fprintf(b, "</%s>", p.Name)
	}
}

// soapFaultEnvelope matches the SOAP 1.2 fault shape.
type soapFaultEnvelope struct {
	Reason string `xml:"Body>Fault>Reason>Text"`
}

// soapFaultError returns the fault reason if the response carries a fault.
func soapFaultError(body []byte) error {
	if !strings.Contains(string(body), "Fault>") && !strings.Contains(string(body), "Fault ") {
		return nil
	}
	var fault soapFaultEnvelope
	if err := xml.Unmarshal(body, &fault); err == nil && fault.Reason != "" {
		return fmt.Errorf("soap fault: %s", strings.TrimSpace(fault.Reason))
	}
	return fmt.Errorf("soap fault")
}

// soapLogPayload flattens params into the recorded payload shape; the
// redaction pass masks pHashAutenticacao and pSenha downstream.
func soapLogPayload(params []soapParam) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for _, p := range params {
		if nested, ok := p.Value.([]soapParam); ok {
			out[p.Name] = soapLogPayload(nested)
			continue
		}
		out[p.Name] = p.Value
	}
	return out
}
