package dispatch

// ContactJob is a send request targeting a single phone number.
type ContactJob struct {
	JobID       string `json:"job_id"`
	ClientID    int64  `json:"owner_id"`
	Phone       string `json:"phone"`
	MessageBody string `json:"message_body"`
	BalanceType string `json:"balance_type"`
}

// GroupJob is a send request fanning out over a contact group.
type GroupJob struct {
	JobID       string `json:"job_id"`
	ClientID    int64  `json:"owner_id"`
	GroupID     int64  `json:"group_id"`
	MessageBody string `json:"message_body"`
	BalanceType string `json:"balance_type"`
}
