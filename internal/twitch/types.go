package twitch

import "time"

// Entity is a watched channel as resolved this cycle. It is rebuilt from a
// fresh lookup every cycle and never persisted.
type Entity struct {
	// Name is the lowercased login; it keys the persisted live state.
	Name        string
	ID          string
	DisplayName string
	AvatarURL   string
}

// Snapshot holds the transient attributes of a currently-live channel.
// Channels that are offline have no Snapshot at all.
type Snapshot struct {
	Title        string
	Category     string
	StartedAt    time.Time
	ThumbnailURL string
}

type usersResponse struct {
	Data []struct {
		ID              string `json:"id"`
		Login           string `json:"login"`
		DisplayName     string `json:"display_name"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

type streamsResponse struct {
	Data []struct {
		UserID       string `json:"user_id"`
		Type         string `json:"type"`
		Title        string `json:"title"`
		GameName     string `json:"game_name"`
		StartedAt    string `json:"started_at"`
		ThumbnailURL string `json:"thumbnail_url"`
	} `json:"data"`
}
