package store

import "fmt"

// Fault is returned when a storage operation fails after its retry.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// ErrorKind classifies the failure for callers that map errors to user messages.
func (f *Fault) ErrorKind() string {
	return "storage"
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Op: op, Err: err}
}
