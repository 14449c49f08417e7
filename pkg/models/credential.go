package models

import "time"

// Sealed is an encrypted value: base64 ciphertext, nonce and GCM tag.
type Sealed struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
}

// IsZero reports whether no component is set.
func (s Sealed) IsZero() bool {
	return s.Ciphertext == "" && s.IV == "" && s.AuthTag == ""
}

// ProviderCredential is an upstream API key stored only in sealed form.
// A nil UserID marks a shared credential.
type ProviderCredential struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Key       Sealed    `json:"-"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shared reports whether the credential is the fallback for every user.
func (c ProviderCredential) Shared() bool {
	return c.UserID == nil
}
