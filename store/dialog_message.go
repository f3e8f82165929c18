package store

// DialogMessageRole identifies who authored a dialog message.
type DialogMessageRole string

const (
	DialogMessageRoleUser      DialogMessageRole = "user"
	DialogMessageRoleAssistant DialogMessageRole = "assistant"
)

// DialogMessage is a single persisted turn message.
type DialogMessage struct {
	ID        int32
	UserID    string
	Username  string
	Role      DialogMessageRole
	Content   string
	CreatedTs int64
}

type FindDialogMessage struct {
	UserID       *string
	CreatedAfter *int64
	Limit        *int
}
