package domain

// RestRequest describes one outbound REST call through the proxy. SourceKey
// and Pin are optional explicit credentials; Authorization is an explicit
// header override which always suppresses credential signing.
type RestRequest struct {
	Environment       Environment       `json:"environment"`
	Method            string            `json:"method"`
	PathOrURL         string            `json:"pathOrUrl"`
	Headers           map[string]string `json:"headers,omitempty"`
	Body              string            `json:"body,omitempty"`
	Authorization     string            `json:"-"`
	SourceKey         string            `json:"-"`
	Pin               string            `json:"-"`
	SessionID         string            `json:"-"`
	PresetID          *string           `json:"-"`
	TicketNumber      string            `json:"-"`
	ConfirmProduction bool              `json:"-"`
}

// SoapRequest describes one outbound SOAP envelope post through the proxy.
type SoapRequest struct {
	Environment       Environment       `json:"environment"`
	SoapAction        string            `json:"soapAction"`
	EndpointURL       string            `json:"endpointUrl,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	Body              string            `json:"body"`
	SessionID         string            `json:"-"`
	PresetID          *string           `json:"-"`
	TicketNumber      string            `json:"-"`
	ConfirmProduction bool              `json:"-"`
}

// ProxyResponse carries the upstream outcome back to the console. SoapFault is
// only set for SOAP calls.
type ProxyResponse struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
	LatencyMs  int64             `json:"latencyMs"`
	SoapFault  *bool             `json:"soapFault,omitempty"`
}
