package domain

// BatchItem is one GraphQL document plus its variables inside a batch.
type BatchItem struct {
	Document      string         `yaml:"document"       json:"document"`
	Variables     map[string]any `yaml:"variables"      json:"variables,omitempty"`
	OperationName string         `yaml:"operation_name" json:"operation_name,omitempty"`
}

// Name returns the operation name used in logs.
func (b BatchItem) Name() string {
	if b.OperationName != "" {
		return b.OperationName
	}
	return "GraphQL request"
}
