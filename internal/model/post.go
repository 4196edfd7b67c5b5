package model

import "time"

type Post struct {
	ID        string    `json:"id"`
	HouseID   string    `json:"house_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName   string `json:"author_name,omitempty"`
	LikeCount    int    `json:"like_count"`
	RepostCount  int    `json:"repost_count"`
	CommentCount int    `json:"comment_count"`
	Liked        bool   `json:"liked"`
	Reposted     bool   `json:"reposted"`
}

type PostComment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
