package types

import "time"

// Profile is the canonical application row for a user. Its ID is the identity id.
// Role and Username here are authoritative over identity metadata.
type Profile struct {
	ID        string    `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Username  string    `json:"username" example:"bob"`
	Email     string    `json:"email" example:"bob@demo.com"`
	Role      string    `json:"role" example:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Ghost is an identity with no matching profile.
type Ghost struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// GhostReport summarises a comparison of the identity store against the profile table.
type GhostReport struct {
	TotalIdentities int     `json:"total_identities"`
	TotalProfiles   int     `json:"total_profiles"`
	Ghosts          []Ghost `json:"ghosts"`
}
