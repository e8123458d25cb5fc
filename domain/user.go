package domain

// User is an identity record owned by the directory.
// The core only reads it and toggles Online.
type User struct {
	ID       string
	Username string
	Name     string
	Avatar   *string
	Online   bool
}

// Profile is the public part of a User attached to outbound events.
type Profile struct {
	ID       string
	Username string
	Name     string
	Avatar   *string
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}
