package keys

import "time"

// Credential is a stored provider API key. The secret itself exists in the
// database only as AES-GCM ciphertext; it is decrypted exclusively inside
// Service at resolution time.
type Credential struct {
	ID         string
	UserID     string
	Label      string
	Ciphertext []byte
	IsActive   bool
	CreatedAt  time.Time
	LastUsed   *time.Time
}

// Metadata is the caller-visible view of a stored credential. It never
// carries ciphertext or plaintext.
type Metadata struct {
	ID        string
	Label     string
	IsActive  bool
	CreatedAt time.Time
	LastUsed  *time.Time
}

func (c *Credential) metadata() *Metadata {
	return &Metadata{
		ID:        c.ID,
		Label:     c.Label,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		LastUsed:  c.LastUsed,
	}
}
