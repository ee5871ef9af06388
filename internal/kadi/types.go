package kadi

// RecordParams is the body of a create or update request. Empty optional
// fields are not sent, so an update leaves them untouched remotely.
type RecordParams struct {
	Title       string   `json:"title"`
	Identifier  string   `json:"identifier,omitempty"`
	State       string   `json:"state,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	License     string   `json:"license,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Extras      []Extra  `json:"extras"`
}

// Record is the remote entity a note synchronizes to.
type Record struct {
	ID           int64    `json:"id"`
	Identifier   string   `json:"identifier"`
	Title        string   `json:"title"`
	State        string   `json:"state,omitempty"`
	Visibility   string   `json:"visibility,omitempty"`
	License      string   `json:"license,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Created      string   `json:"created_at,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
}

// User is an account of the instance.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayname"`
	Identity    struct {
		Username    string `json:"username"`
		DisplayName string `json:"displayname"`
		Type        string `json:"type"`
	} `json:"identity"`
}

// Username is the login name of u.
func (u *User) Username() string {
	if u.Identity.Username != "" {
		return u.Identity.Username
	}
	return u.DisplayName
}
