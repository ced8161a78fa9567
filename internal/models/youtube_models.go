package models

// Wire shapes for the YouTube Data API v3 responses we consume.

type YouTubeSearchResponse struct {
	NextPageToken string              `json:"nextPageToken,omitempty"`
	Items         []YouTubeSearchItem `json:"items"`
}

type YouTubeSearchItem struct {
	ID struct {
		Kind      string `json:"kind"`
		ChannelID string `json:"channelId,omitempty"`
		VideoID   string `json:"videoId,omitempty"`
	} `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
}

type YouTubeCommentThreadResponse struct {
	NextPageToken string                 `json:"nextPageToken,omitempty"`
	Items         []YouTubeCommentThread `json:"items"`
}

type YouTubeCommentThread struct {
	ID      string `json:"id"`
	Snippet struct {
		TopLevelComment struct {
			ID      string               `json:"id"`
			Snippet YouTubeCommentSnippet `json:"snippet"`
		} `json:"topLevelComment"`
		TotalReplyCount int `json:"totalReplyCount"`
	} `json:"snippet"`
}

type YouTubeCommentSnippet struct {
	TextDisplay       string `json:"textDisplay"`
	TextOriginal      string `json:"textOriginal"`
	AuthorDisplayName string `json:"authorDisplayName"`
	PublishedAt       string `json:"publishedAt"`
	LikeCount         int64  `json:"likeCount"`
}

type YouTubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}
