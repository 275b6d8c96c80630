package intake

import "fmt"

// Rejection is returned when an attachment fills neither slot.
type Rejection struct {
	Reason Reason
	Kind   Kind
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("attachment rejected: %s (kind %s)", r.Reason, r.Kind)
}

// ErrorKind classifies the rejection as a recoverable user error.
func (r *Rejection) ErrorKind() string {
	return "rejected"
}

// Err returns a *Rejection for rejected classifications and nil otherwise.
func (c Classification) Err(kind Kind) error {
	if c.Accepted() {
		return nil
	}
	return &Rejection{Reason: c.Reason, Kind: kind}
}
