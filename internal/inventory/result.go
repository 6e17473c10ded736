package inventory

import (
	"errors"
	"fmt"
)

// ErrAllServicesFailed is the Result error when every hosted service faulted
var ErrAllServicesFailed = errors.New("deployment retrieval failed for every hosted service")

// ProviderFault is a failure raised by the inventory client during a collection
type ProviderFault struct {
	Kind        string
	Operation   string
	ServiceName string
	Err         error
}

func (f *ProviderFault) Error() string {
	if f.ServiceName != "" {
		return fmt.Sprintf("%s: %s failed for service %s: %v", f.Kind, f.Operation, f.ServiceName, f.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", f.Kind, f.Operation, f.Err)
}

func (f *ProviderFault) Unwrap() error {
	return f.Err
}

// Result is the outcome of one collection. When Err is set the kind produced
// no data this run and Set must be treated as end-of-data. Faults lists the
// hosted services whose contribution was skipped; they do not set Err unless
// every service failed.
type Result[S any] struct {
	Set    S
	Err    error
	Faults []*ProviderFault
}

// OK reports whether the collection produced data
func (r Result[S]) OK() bool {
	return r.Err == nil
}

// FaultCount returns the number of provider faults seen, including a whole-kind failure
func (r Result[S]) FaultCount() int {
	if r.Err != nil && len(r.Faults) == 0 {
		return 1
	}
	return len(r.Faults)
}
