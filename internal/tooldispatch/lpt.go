package tooldispatch

// The LPT argument structs below deliberately expose only record IDs and
// free-text instructions. Everything else a worker needs (user, company,
// thread, mandate, DMS, credentials) is injected server-side during
// dispatch, so the model cannot forge it.

type apBookkeeperArgs struct {
	InvoiceIDs   []string `json:"invoice_ids" jsonschema:"required,description=IDs of the accounts-payable invoices to book"`
	Instructions string   `json:"instructions,omitempty" jsonschema:"description=Free-text booking instructions"`
}

// NewAPBookkeeperTool books accounts-payable invoices through the
// bookkeeping worker.
func NewAPBookkeeperTool() *Tool {
	return &Tool{
		Name:        "LPT_APBookkeeper",
		Description: "Book one or more accounts-payable invoices into the ERP. Runs asynchronously; results arrive later.",
		Parameters:  mustSchema[apBookkeeperArgs](),
		Kind:        KindLPT,
		LPTTaskType: "APBookkeeper",
	}
}

type documentRouterArgs struct {
	DriveFileID  string `json:"drive_file_id" jsonschema:"required,description=ID of the drive file to classify and route"`
	Instructions string `json:"instructions,omitempty" jsonschema:"description=Free-text routing instructions"`
}

// NewDocumentRouterTool routes a drive file through the document
// classification worker.
func NewDocumentRouterTool() *Tool {
	return &Tool{
		Name:        "LPT_Router",
		Description: "Classify and route a drive document to its destination folder. Runs asynchronously; results arrive later.",
		Parameters:  mustSchema[documentRouterArgs](),
		Kind:        KindLPT,
		LPTTaskType: "Router",
	}
}

type bankMatcherArgs struct {
	TransactionIDs []string `json:"transaction_ids" jsonschema:"required,description=IDs of the bank transactions to reconcile"`
	Instructions   string   `json:"instructions,omitempty" jsonschema:"description=Free-text matching instructions"`
}

// NewBankMatcherTool reconciles bank transactions against open items
// through the matching worker.
func NewBankMatcherTool() *Tool {
	return &Tool{
		Name:        "LPT_BankMatcher",
		Description: "Match bank transactions against open invoices and post the reconciliation. Runs asynchronously; results arrive later.",
		Parameters:  mustSchema[bankMatcherArgs](),
		Kind:        KindLPT,
		LPTTaskType: "BankMatcher",
	}
}
