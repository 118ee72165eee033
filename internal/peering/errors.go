package peering

import (
	"fmt"
	"sort"
)

// InvalidInputError reports an argument that is not a usable ASN.
type InvalidInputError struct {
	Arg string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("please enter a valid ASN: %q", e.Arg)
}

// UnknownNetworkError lists requested networks the registry has no entry for.
type UnknownNetworkError struct {
	IDs []NetworkID
}

func NewUnknownNetworkError(ids []NetworkID) *UnknownNetworkError {
	sorted := append([]NetworkID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &UnknownNetworkError{IDs: sorted}
}

func (e *UnknownNetworkError) Error() string {
	return "following networks do not have a PeeringDB entry: " + JoinIDs(e.IDs)
}

// DataSourceUnavailableError wraps a registry failure. The core never retries.
type DataSourceUnavailableError struct {
	Source string
	Err    error
}

func (e *DataSourceUnavailableError) Error() string {
	return fmt.Sprintf("registry %s unavailable: %v", e.Source, e.Err)
}

func (e *DataSourceUnavailableError) Unwrap() error { return e.Err }
