package domain

import "time"

// ScenarioRun is an immutable audit record of one executed request/response
// pair. Rows are append-only; the preset reference is cleared, not cascaded,
// when the preset is deleted.
type ScenarioRun struct {
	ID               string      `json:"id"`
	PresetID         *string     `json:"presetId,omitempty"`
	APIKind          APIKind     `json:"apiKind"`
	Environment      Environment `json:"environment"`
	RequestRedacted  string      `json:"requestRedacted"`
	ResponseRedacted string      `json:"responseRedacted"`
	HTTPStatus       *int        `json:"httpStatus,omitempty"`
	SoapFault        *bool       `json:"soapFault,omitempty"`
	LatencyMs        int64       `json:"latencyMs"`
	CorrelationID    string      `json:"correlationId"`
	TicketNumber     string      `json:"ticketNumber,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}
