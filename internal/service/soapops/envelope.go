package soapops

import (
	"encoding/xml"
	"fmt"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/creds"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
)

// The envelope is assembled by hand rather than through generated WSDL
// clients: a support testbench needs to send envelopes for arbitrary WSDL
// versions, custom headers and deliberately malformed requests.

const softwareName = "USAePay-TestBench"

const (
	envelopeOpen = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ue="urn:usaepay">` +
		"\n  <SOAP-ENV:Body>\n"
	envelopeClose = "\n  </SOAP-ENV:Body>\n</SOAP-ENV:Envelope>"
)

type operationCall struct {
	XMLName  xml.Name
	Token    creds.SecurityToken `xml:"Token"`
	Params   *transactionParams  `xml:"Params,omitempty"`
	RefNum   string              `xml:"RefNum,omitempty"`
	Details  *transactionDetail  `xml:"Details,omitempty"`
	Amount   string              `xml:"Amount,omitempty"`
	AuthOnly *bool               `xml:"AuthOnly,omitempty"`
}

type transactionParams struct {
	AccountHolder  string             `xml:"AccountHolder"`
	ClientIP       string             `xml:"ClientIP"`
	CreditCardData *creditCardData    `xml:"CreditCardData,omitempty"`
	CheckData      *checkData         `xml:"CheckData,omitempty"`
	Details        *transactionDetail `xml:"Details"`
	Software       string             `xml:"Software"`
}

type creditCardData struct {
	CardNumber     string `xml:"CardNumber"`
	CardExpiration string `xml:"CardExpiration"`
	CardCode       string `xml:"CardCode,omitempty"`
	AvsStreet      string `xml:"AvsStreet,omitempty"`
	AvsZip         string `xml:"AvsZip,omitempty"`
}

type checkData struct {
	Routing     string `xml:"Routing"`
	Account     string `xml:"Account"`
	CheckNumber string `xml:"CheckNumber"`
	AccountType string `xml:"AccountType,omitempty"`
}

type transactionDetail struct {
	Amount      string `xml:"Amount,omitempty"`
	Invoice     string `xml:"Invoice,omitempty"`
	Description string `xml:"Description,omitempty"`
}

// buildEnvelope renders the complete SOAP envelope for one validated
// operation and token.
func buildEnvelope(op domain.Operation, token creds.SecurityToken, clientIP string) (string, error) {
	call := operationCall{
		XMLName: xml.Name{Local: "ue:" + op.Name()},
		Token:   token,
	}

	switch v := op.(type) {
	case domain.Sale:
		call.Params = cardParams(v.Cardholder, clientIP,
			&creditCardData{CardNumber: v.CardNumber, CardExpiration: v.CardExpiration, CardCode: v.CardCode, AvsStreet: v.AvsStreet, AvsZip: v.AvsZip},
			&transactionDetail{Amount: v.Amount, Invoice: v.Invoice, Description: v.Description})
	case domain.AuthOnly:
		call.Params = cardParams(v.Cardholder, clientIP,
			&creditCardData{CardNumber: v.CardNumber, CardExpiration: v.CardExpiration, CardCode: v.CardCode, AvsStreet: v.AvsStreet, AvsZip: v.AvsZip},
			&transactionDetail{Amount: v.Amount, Invoice: v.Invoice, Description: v.Description})
	case domain.Credit:
		call.Params = cardParams(v.Cardholder, clientIP,
			&creditCardData{CardNumber: v.CardNumber, CardExpiration: v.CardExpiration, CardCode: v.CardCode},
			&transactionDetail{Amount: v.Amount, Invoice: v.Invoice, Description: v.Description})
	case domain.CheckSale:
		call.Params = &transactionParams{
			AccountHolder: v.Cardholder,
			ClientIP:      clientIP,
			CheckData:     &checkData{Routing: v.Routing, Account: v.Account, CheckNumber: v.CheckNumber, AccountType: v.AccountType},
			Details:       &transactionDetail{Amount: v.Amount, Invoice: v.Invoice, Description: v.Description},
			Software:      softwareName,
		}
	case domain.QuickSale:
		call.RefNum = v.RefNum
		call.Details = &transactionDetail{Amount: v.Amount, Invoice: v.Invoice, Description: v.Description}
		authOnly := v.AuthOnly
		call.AuthOnly = &authOnly
	case domain.Void:
		call.RefNum = v.RefNum
	case domain.Refund:
		call.RefNum = v.RefNum
		call.Amount = v.Amount
	default:
		return "", fmt.Errorf("unsupported SOAP operation: %s", op.Name())
	}

	payload, err := xml.MarshalIndent(call, "    ", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s call: %w", op.Name(), err)
	}
	return envelopeOpen + string(payload) + envelopeClose, nil
}

func cardParams(holder, clientIP string, card *creditCardData, details *transactionDetail) *transactionParams {
	return &transactionParams{
		AccountHolder:  holder,
		ClientIP:       clientIP,
		CreditCardData: card,
		Details:        details,
		Software:       softwareName,
	}
}
