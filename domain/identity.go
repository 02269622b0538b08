package domain

// Creator holds the content-creator profile attached to some accounts.
type Creator struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Identity is the single per-profile session record: the primary-platform
// tokens plus whatever secondary accounts have been linked to it. At most one
// record exists per profile; linking merges fields into it rather than
// replacing the record.
type Identity struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// PlayerID is the numeric primary-platform identifier, kept as a string
	// because 17-digit ids overflow float-typed JSON consumers.
	PlayerID string `json:"player_id"`
	Username string `json:"username,omitempty"`

	DiscordID   string `json:"discord_id,omitempty"`
	DiscordName string `json:"discord_name,omitempty"`
	GoogleEmail string `json:"google_email,omitempty"`
	Linked      bool   `json:"linked,omitempty"`

	Creator *Creator `json:"creator,omitempty"`

	// CustomerToken authorizes calls to the commerce API on behalf of this
	// profile's storefront customer.
	CustomerToken string `json:"customer_token,omitempty"`
}

// Merge copies the non-zero fields of patch into i. Zero-valued fields of
// patch leave the existing value untouched, which is what the link/unlink
// flows rely on.
func (i *Identity) Merge(patch *Identity) {
	if patch == nil {
		return
	}
	if patch.AccessToken != "" {
		i.AccessToken = patch.AccessToken
	}
	if patch.RefreshToken != "" {
		i.RefreshToken = patch.RefreshToken
	}
	if patch.PlayerID != "" {
		i.PlayerID = patch.PlayerID
	}
	if patch.Username != "" {
		i.Username = patch.Username
	}
	if patch.DiscordID != "" {
		i.DiscordID = patch.DiscordID
	}
	if patch.DiscordName != "" {
		i.DiscordName = patch.DiscordName
	}
	if patch.GoogleEmail != "" {
		i.GoogleEmail = patch.GoogleEmail
	}
	if patch.Linked {
		i.Linked = true
	}
	if patch.Creator != nil {
		i.Creator = patch.Creator
	}
	if patch.CustomerToken != "" {
		i.CustomerToken = patch.CustomerToken
	}
}
