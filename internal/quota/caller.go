package quota

import "context"

// Caller identifies who is scanning: a signed-in user when UserID is set,
// otherwise the network address.
type Caller struct {
	UserID  uint
	Address string
}

func (c Caller) Anonymous() bool {
	return c.UserID == 0
}

// Check routes to the registered or anonymous rule.
func (l *Ledger) Check(ctx context.Context, c Caller, freeLimit int) (Decision, error) {
	if c.Anonymous() {
		return l.CheckAnonymousLimit(ctx, c.Address, freeLimit)
	}
	return l.CheckRegisteredLimit(ctx, c.UserID)
}

func (l *Ledger) Record(ctx context.Context, c Caller) error {
	if c.Anonymous() {
		return l.RecordAnonymousScan(ctx, c.Address)
	}
	return l.RecordRegisteredScan(ctx, c.UserID)
}
