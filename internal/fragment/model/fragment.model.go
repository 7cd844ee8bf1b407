package model

import (
	"time"
)

// FallbackText is shown when nobody else has submitted today.
const FallbackText = "You're the first soul here today. 🌿 Check again later — another heart will speak soon."

// MaxTextLength is counted in runes after trimming.
const MaxTextLength = 500

type Fragment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateFragmentRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

type AnonymousSignInResponse struct {
	Token    string `json:"token"`
	AuthorID string `json:"author_id"`
}

type RefreshRequest struct {
	Token string `json:"token"`
}

// FragmentAddedPayload is pushed over the feed. It never carries the text.
type FragmentAddedPayload struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
