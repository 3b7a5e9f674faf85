package model

// Admin is a user allowed to run privileged commands (force-off, transfer,
// environment and settings management).  PasswordHash holds a bcrypt hash
// used only by the admin HTTP login; command-surface admin checks go by
// UserID alone.
type Admin struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"-"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    int64  `json:"created_at"`
}
