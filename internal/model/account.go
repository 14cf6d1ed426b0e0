package model

import "time"

// LinkedAccount identifies one external bank account belonging to a user.
// The aggregator access token is stored encrypted and only decrypted for
// the duration of a sync call.
//
// Accounts are never hard-deleted: disconnecting sets IsActive to false so
// historical transactions keep a valid owner.
type LinkedAccount struct {
	CreatedAt             time.Time
	UpdatedAt             time.Time
	LastSync              *time.Time
	ProviderAccountID     string
	UserID                string
	EncryptedAccessToken  string
	Name                  string
	Type                  string
	LastFour              string
	ID                    int64
	IsActive              bool
	IsInitialSyncComplete bool
}
