package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecotrackhq/ecotrack/internal/model"
)

type PostStore struct {
	db *sql.DB
}

func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

const postSelect = `
	SELECT p.id, p.house_id, p.user_id, p.content, p.photo_url, p.created_at,
	       COALESCE(pr.full_name, ''),
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
	       (SELECT COUNT(*) FROM post_reposts r WHERE r.post_id = p.id),
	       (SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id),
	       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?),
	       EXISTS(SELECT 1 FROM post_reposts r WHERE r.post_id = p.id AND r.user_id = ?)
	FROM posts p
	LEFT JOIN user_profiles pr ON pr.user_id = p.user_id`

func scanPost(scanner interface{ Scan(...any) error }) (*model.Post, error) {
	var p model.Post
	err := scanner.Scan(
		&p.ID, &p.HouseID, &p.UserID, &p.Content, &p.PhotoURL, &p.CreatedAt,
		&p.AuthorName, &p.LikeCount, &p.RepostCount, &p.CommentCount, &p.Liked, &p.Reposted,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostStore) Create(houseID, userID, content, photoURL string) (*model.Post, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO posts (id, house_id, user_id, content, photo_url) VALUES (?, ?, ?, ?, ?)`,
		id, houseID, userID, content, photoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return s.Get(id, userID)
}

// Get returns a post with counts and the viewer's like/repost flags, or nil.
func (s *PostStore) Get(id, viewerID string) (*model.Post, error) {
	row := s.db.QueryRow(postSelect+` WHERE p.id = ?`, viewerID, viewerID, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// ListByHouse returns the house feed, newest first.
func (s *PostStore) ListByHouse(houseID, viewerID string, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		postSelect+` WHERE p.house_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ?`,
		viewerID, viewerID, houseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// Like records a like; liking an already-liked post is a no-op.
func (s *PostStore) Like(postID, userID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO post_likes (post_id, user_id) VALUES (?, ?)`,
		postID, userID,
	)
	if err != nil {
		return fmt.Errorf("like post: %w", err)
	}
	return nil
}

func (s *PostStore) Unlike(postID, userID string) error {
	_, err := s.db.Exec(`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return fmt.Errorf("unlike post: %w", err)
	}
	return nil
}

// Repost records a repost; reposting twice is a no-op.
func (s *PostStore) Repost(postID, userID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO post_reposts (post_id, user_id) VALUES (?, ?)`,
		postID, userID,
	)
	if err != nil {
		return fmt.Errorf("repost: %w", err)
	}
	return nil
}

func (s *PostStore) Unrepost(postID, userID string) error {
	_, err := s.db.Exec(`DELETE FROM post_reposts WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return fmt.Errorf("unrepost: %w", err)
	}
	return nil
}

func (s *PostStore) AddComment(postID, userID, content string) (*model.PostComment, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO post_comments (id, post_id, user_id, content) VALUES (?, ?, ?, ?)`,
		id, postID, userID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT c.id, c.post_id, c.user_id, c.content, COALESCE(pr.full_name, ''), c.created_at
		 FROM post_comments c
		 LEFT JOIN user_profiles pr ON pr.user_id = c.user_id
		 WHERE c.id = ?`,
		id,
	)
	var cm model.PostComment
	if err := row.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Content, &cm.AuthorName, &cm.CreatedAt); err != nil {
		return nil, fmt.Errorf("read comment: %w", err)
	}
	return &cm, nil
}

// ListComments returns a post's comments, oldest first.
func (s *PostStore) ListComments(postID string) ([]model.PostComment, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.post_id, c.user_id, c.content, COALESCE(pr.full_name, ''), c.created_at
		 FROM post_comments c
		 LEFT JOIN user_profiles pr ON pr.user_id = c.user_id
		 WHERE c.post_id = ?
		 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.PostComment
	for rows.Next() {
		var cm model.PostComment
		if err := rows.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Content, &cm.AuthorName, &cm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, cm)
	}
	return comments, rows.Err()
}
