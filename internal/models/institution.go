package models

// Institution is an issuing organization registered with the backend.
type Institution struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Email     string `json:"email,omitempty"`
	Website   string `json:"website,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}
