package store

// UserThread binds a user to their remote conversation thread and tracks
// activity for the reminder service. Reminder timestamps are zero until the
// corresponding reminder stage has been sent.
type UserThread struct {
	UserID           string
	Username         string
	ThreadID         string
	TurnCount        int32
	LastActiveTs     int64
	FirstReminderTs  int64
	SecondReminderTs int64
}

type FindUserThread struct {
	UserID *string
	// InactiveSince filters for threads whose last activity is at or
	// before the given unix timestamp.
	InactiveSince *int64
}

type UpdateUserThread struct {
	UserID           string
	FirstReminderTs  *int64
	SecondReminderTs *int64
}
