package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techblog/techblog/models"
	"github.com/techblog/techblog/utils"
)

// ContentStore persists posts and comments.
//
// Every mutation is a single statement conditioned on both the record id and
// the caller's user id, so ownership is checked and applied atomically and a
// caller cannot tell a missing record from someone else's.
type ContentStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// PostFields carries the editable fields of a post.
type PostFields struct {
	Title   string
	Content string
}

// NewContentStore creates a ContentStore over db.
func NewContentStore(db *gorm.DB, log *zap.Logger) *ContentStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentStore{db: db, log: log.Named("content")}
}

// CreatePost stores a new post owned by authorID.
func (s *ContentStore) CreatePost(ctx context.Context, authorID uint, title, content string) (*models.Post, error) {
	fields, err := cleanPostFields(PostFields{Title: title, Content: content})
	if err != nil {
		return nil, err
	}
	if authorID == 0 {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidInput)
	}

	post := models.Post{UserID: authorID, Title: fields.Title, Content: fields.Content}
	if err := s.db.WithContext(ctx).Omit("User", "Comments").Create(&post).Error; err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("%w: author does not exist", ErrInvalidInput)
		}
		return nil, fmt.Errorf("store: create post: %w", err)
	}
	s.log.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("user_id", authorID))
	return &post, nil
}

// UpdatePost replaces title and content of a post owned by authorID.
func (s *ContentStore) UpdatePost(ctx context.Context, postID, authorID uint, fields PostFields) (*models.Post, error) {
	fields, err := cleanPostFields(fields)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND user_id = ?", postID, authorID).
			Updates(map[string]interface{}{"title": fields.Title, "content": fields.Content})
		if res.Error != nil {
			return fmt.Errorf("store: update post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFoundOrForbidden
		}
		return tx.First(&post, postID).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("post updated", zap.Uint("post_id", postID), zap.Uint("user_id", authorID))
	return &post, nil
}

// DeletePost removes a post owned by authorID together with all of its comments.
func (s *ContentStore) DeletePost(ctx context.Context, postID, authorID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", postID, authorID).Delete(&models.Post{})
		if res.Error != nil {
			return fmt.Errorf("store: delete post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFoundOrForbidden
		}
		// stores without enforced foreign keys do not cascade on their own
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("store: delete comments: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("post deleted", zap.Uint("post_id", postID), zap.Uint("user_id", authorID))
	return nil
}

// CreateComment adds a comment by authorID to an existing post.
func (s *ContentStore) CreateComment(ctx context.Context, postID, authorID uint, content string) (*models.Comment, error) {
	content = utils.CleanText(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	comment := models.Comment{PostID: postID, UserID: authorID, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return fmt.Errorf("store: lookup post: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: post does not exist", ErrInvalidInput)
		}
		if err := tx.Omit("User", "Post").Create(&comment).Error; err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("%w: post or author does not exist", ErrInvalidInput)
			}
			return fmt.Errorf("store: create comment: %w", err)
		}
		return tx.Preload("User").First(&comment, comment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("comment created", zap.Uint("comment_id", comment.ID), zap.Uint("post_id", postID), zap.Uint("user_id", authorID))
	return &comment, nil
}

// UpdateComment replaces the content of a comment written by authorID.
func (s *ContentStore) UpdateComment(ctx context.Context, commentID, authorID uint, content string) (*models.Comment, error) {
	content = utils.CleanText(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND user_id = ?", commentID, authorID).
			Update("content", content)
		if res.Error != nil {
			return fmt.Errorf("store: update comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFoundOrForbidden
		}
		return tx.Preload("User").First(&comment, commentID).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes a comment written by authorID.
func (s *ContentStore) DeleteComment(ctx context.Context, commentID, authorID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", commentID, authorID).Delete(&models.Comment{})
	if res.Error != nil {
		return fmt.Errorf("store: delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}
	s.log.Info("comment deleted", zap.Uint("comment_id", commentID), zap.Uint("user_id", authorID))
	return nil
}

// GetPostWithComments loads a post, its author, and its comments oldest first.
func (s *ContentStore) GetPostWithComments(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Comments.User").
		First(&post, postID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load post: %w", err)
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	return &post, nil
}

// ListPosts returns posts newest first with their authors, plus the total count.
func (s *ContentStore) ListPosts(ctx context.Context, page Page) ([]models.Post, int64, error) {
	return s.listPosts(s.db.WithContext(ctx), page)
}

// ListPostsByAuthor returns the posts written by authorID, newest first.
func (s *ContentStore) ListPostsByAuthor(ctx context.Context, authorID uint, page Page) ([]models.Post, int64, error) {
	return s.listPosts(s.db.WithContext(ctx).Where("user_id = ?", authorID), page)
}

func (s *ContentStore) listPosts(q *gorm.DB, page Page) ([]models.Post, int64, error) {
	page = page.Normalize()

	var total int64
	if err := q.Session(&gorm.Session{}).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count posts: %w", err)
	}

	posts := []models.Post{}
	err := q.Session(&gorm.Session{}).
		Preload("User").
		Order("created_at DESC").Order("id DESC").
		Offset(page.offset()).Limit(page.Size).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: list posts: %w", err)
	}
	return posts, total, nil
}

func cleanPostFields(f PostFields) (PostFields, error) {
	f.Title = utils.CleanText(f.Title)
	f.Content = utils.CleanText(f.Content)
	switch {
	case f.Title == "":
		return f, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case len(f.Title) > 255:
		return f, fmt.Errorf("%w: title is longer than 255 bytes", ErrInvalidInput)
	case f.Content == "":
		return f, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return f, nil
}
