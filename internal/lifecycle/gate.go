package lifecycle

import "fmt"

// Gate refuses administrative operations unless database management is enabled
type Gate struct {
	Enabled bool
}

// Check returns ErrPermissionDenied for op when the gate is closed
func (g Gate) Check(op string) error {
	if !g.Enabled {
		return fmt.Errorf("%w: %s requires database management to be enabled (list_db)", ErrPermissionDenied, op)
	}
	return nil
}
