package models

// AvatarParams are the caller-supplied knobs for one avatar connection.
// ClientID identifies the logical client across requests, independent of the
// underlying transport connection.
type AvatarParams struct {
	ClientID  string
	Voice     string
	Style     string
	Character string
	Custom    bool
	LocalSDP  string
}
