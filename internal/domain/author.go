package domain

// AuthorInfo is the display identity bound to a principal. Not versioned;
// last fetch wins and bindings change only via explicit profile edit.
type AuthorInfo struct {
	Alias    string
	AvatarID string
}

// AnonymousAuthor is returned (and cached) when a directory lookup fails.
var AnonymousAuthor = AuthorInfo{Alias: "Anonymous", AvatarID: "default"}
