package domain

// Operation is a typed SOAP gateway operation. Each variant carries only the
// fields its call shape needs; validation and envelope building switch
// exhaustively over the concrete types.
type Operation interface {
	Name() string
	isOperation()
}

// Sale charges a card.
type Sale struct {
	Amount         string `json:"amount"`
	CardNumber     string `json:"cardNumber"`
	CardExpiration string `json:"cardExpiration"`
	CardCode       string `json:"cardCode,omitempty"`
	Cardholder     string `json:"cardholder,omitempty"`
	AvsStreet      string `json:"avsStreet,omitempty"`
	AvsZip         string `json:"avsZip,omitempty"`
	Invoice        string `json:"invoice,omitempty"`
	Description    string `json:"description,omitempty"`
}

// AuthOnly authorizes a card without capturing.
type AuthOnly struct {
	Amount         string `json:"amount"`
	CardNumber     string `json:"cardNumber"`
	CardExpiration string `json:"cardExpiration"`
	CardCode       string `json:"cardCode,omitempty"`
	Cardholder     string `json:"cardholder,omitempty"`
	AvsStreet      string `json:"avsStreet,omitempty"`
	AvsZip         string `json:"avsZip,omitempty"`
	Invoice        string `json:"invoice,omitempty"`
	Description    string `json:"description,omitempty"`
}

// Credit pushes funds back to a card.
type Credit struct {
	Amount         string `json:"amount"`
	CardNumber     string `json:"cardNumber"`
	CardExpiration string `json:"cardExpiration"`
	CardCode       string `json:"cardCode,omitempty"`
	Cardholder     string `json:"cardholder,omitempty"`
	Invoice        string `json:"invoice,omitempty"`
	Description    string `json:"description,omitempty"`
}

// CheckSale runs an ACH sale.
type CheckSale struct {
	Amount      string `json:"amount"`
	Routing     string `json:"routing"`
	Account     string `json:"account"`
	CheckNumber string `json:"checkNumber"`
	AccountType string `json:"accountType,omitempty"`
	Cardholder  string `json:"cardholder,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	Description string `json:"description,omitempty"`
}

// QuickSale recharges a previous transaction by reference number.
type QuickSale struct {
	RefNum      string `json:"refNum"`
	Amount      string `json:"amount"`
	AuthOnly    bool   `json:"authOnly,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	Description string `json:"description,omitempty"`
}

// Void cancels a transaction before settlement.
type Void struct {
	RefNum string `json:"refNum"`
}

// Refund returns funds for a settled transaction.
type Refund struct {
	RefNum string `json:"refNum"`
	Amount string `json:"amount"`
}

func (Sale) Name() string      { return "runSale" }
func (AuthOnly) Name() string  { return "runAuthOnly" }
func (Credit) Name() string    { return "runCredit" }
func (CheckSale) Name() string { return "runCheckSale" }
func (QuickSale) Name() string { return "runQuickSale" }
func (Void) Name() string      { return "voidTransaction" }
func (Refund) Name() string    { return "refundTransaction" }

func (Sale) isOperation()      {}
func (AuthOnly) isOperation()  {}
func (Credit) isOperation()    {}
func (CheckSale) isOperation() {}
func (QuickSale) isOperation() {}
func (Void) isOperation()      {}
func (Refund) isOperation()    {}
