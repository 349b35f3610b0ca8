package access

type AccessState string

const (
	AccessFree    AccessState = "free"
	AccessMember  AccessState = "member"
	AccessExpired AccessState = "expired"
)

// ScanMode tells the client whether scans are metered.
type ScanMode string

const (
	ScanMetered   ScanMode = "metered"
	ScanUnlimited ScanMode = "unlimited"
)
