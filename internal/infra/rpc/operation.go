package rpc

import (
	"github.com/vietddude/gqlgate/internal/core/domain"
)

// NewOperation creates an unnamed batch item.
func NewOperation(document string, variables map[string]any) domain.BatchItem {
	return domain.BatchItem{
		Document:  document,
		Variables: variables,
	}
}

// NewNamedOperation creates a batch item whose name shows up in logs.
func NewNamedOperation(name, document string, variables map[string]any) domain.BatchItem {
	return domain.BatchItem{
		Document:      document,
		Variables:     variables,
		OperationName: name,
	}
}
