package gateway

// Verifier defines what the gateway needs from the launch-context
// verification collaborator. The core never sees raw initData; by the time
// a user ID reaches the session app it is trusted.
type Verifier interface {
	Verify(initData string) error
}

// userPayload is the user object the WebApp client sends alongside initData.
type userPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// displayName picks the name shown on the leaderboard.
func (u userPayload) displayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
