package model

// User is an identity from the user directory. Providers are ordinary users
// with the provider flag set; not every user is a provider.
type User struct {
	ID       string
	Name     string
	Email    string
	Provider bool
}
