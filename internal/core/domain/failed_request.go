package domain

// FailedRequest is a request whose retries were exhausted or that failed
// permanently.
type FailedRequest struct {
	ID            string      `json:"id"`
	OperationName string      `json:"operation_name"`
	Document      string      `json:"document"`
	Error         string      `json:"error_msg"`
	FailureType   FailureType `json:"failure_type"`
	Attempts      int         `json:"attempts"`
	BatchIndex    int         `json:"batch_index"` // -1 outside a batch
	CreatedAt     int64       `json:"created_at"`
}

type FailureType string

const (
	FailureTypeAdmission FailureType = "admission"
	FailureTypeTransient FailureType = "transient"
	FailureTypePermanent FailureType = "permanent"
	FailureTypeCanceled  FailureType = "canceled"
)
