package payments

// Result is the normalized outcome carried by a webhook.
type Result string

const (
	ResultSuccess              Result = "success"
	ResultInvalidReferenceNo   Result = "invalid_reference_no"
	ResultInvalidGBReferenceNo Result = "invalid_gb_reference_no"
	ResultInvalidAmount        Result = "invalid_amount"
	ResultDuplicateTransaction Result = "duplicate_transaction"
	ResultOverDue              Result = "overdue"
	ResultSystemError          Result = "system_error"
	ResultFailed               Result = "failed"
	ResultPending              Result = "pending"
	// ResultUnknown keeps notifications we do not understand acknowledgeable.
	ResultUnknown Result = "unknown"
)

func (r Result) IsSuccess() bool {
	return r == ResultSuccess
}

var gbPrimePayResults = map[string]Result{
	"00": ResultSuccess,
	"11": ResultInvalidReferenceNo,
	"12": ResultInvalidGBReferenceNo,
	"14": ResultInvalidAmount,
	"21": ResultDuplicateTransaction,
	"22": ResultOverDue,
	"99": ResultSystemError,
}

var omiseResults = map[string]Result{
	"successful": ResultSuccess,
	"failed":     ResultFailed,
	"expired":    ResultFailed,
	"pending":    ResultPending,
}

func lookupResult(table map[string]Result, code string) Result {
	if result, ok := table[code]; ok {
		return result
	}
	return ResultUnknown
}
