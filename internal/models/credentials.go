package models

// RelayCredential describes the TURN relay servers and auth used to bootstrap
// a WebRTC media session. Field names follow the issuing service's payload.
type RelayCredential struct {
	URLs     []string `json:"Urls"`
	Username string   `json:"Username"`
	Password string   `json:"Password"`
}

// Valid reports whether the credential is well-formed enough to publish.
func (c *RelayCredential) Valid() bool {
	return c != nil && len(c.URLs) > 0 && c.URLs[0] != "" && c.Username != "" && c.Password != ""
}
