package store

// CapturedContact is contact information the assistant extracted from a
// conversation via the contact capture tool.
type CapturedContact struct {
	ID        int32
	UID       string
	UserID    string
	Username  string
	Name      string
	Phone     string
	Email     string
	Payload   string // raw tool arguments, JSON string
	CreatedTs int64
}

type FindCapturedContact struct {
	UserID       *string
	CreatedAfter *int64
}
