package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulseblog/pulse/models"
	"github.com/pulseblog/pulse/utils"
)

// ProfileController serves author pages and the follow/unfollow actions.
type ProfileController struct {
	db *gorm.DB
}

// NewProfileController creates a new ProfileController instance.
func NewProfileController(db *gorm.DB) *ProfileController {
	return &ProfileController{db: db}
}

// Profile returns an author's page: their posts, newest first, plus a
// following flag that is true only for an authenticated viewer who is not
// the owner and has a follow edge to them.
func (p *ProfileController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")

	var author models.User
	if err := p.db.Where("username = ?", username).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load user")
		return
	}

	page, pageSize := parsePagination(ctx)
	var posts []models.Post
	var total int64

	query := p.db.Where("author_id = ?", author.ID).
		Preload("Author").Preload("Group").
		Order("created_at DESC, id DESC")
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to count posts")
		return
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to list posts")
		return
	}

	following := false
	if viewerID, ok := getUserID(ctx); ok && viewerID != author.ID {
		var cnt int64
		if err := p.db.Model(&models.Follow{}).
			Where("user_id = ? AND author_id = ?", viewerID, author.ID).
			Count(&cnt).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to check follow state")
			return
		}
		following = cnt > 0
	}

	utils.Success(ctx, gin.H{
		"author":     author,
		"items":      posts,
		"pagination": paginationMeta(page, pageSize, total),
		"following":  following,
	})
}

// FollowIndex returns the feed of posts authored by anyone the requester
// follows, newest first, paginated.
func (p *ProfileController) FollowIndex(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx)
	var posts []models.Post
	var total int64

	query := p.db.
		Joins("JOIN follows ON follows.author_id = posts.author_id AND follows.user_id = ?", userID).
		Preload("Author").Preload("Group").
		Order("posts.created_at DESC, posts.id DESC")
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to count feed")
		return
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to list feed")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      posts,
		"pagination": paginationMeta(page, pageSize, total),
	})
}

// ProfileFollow subscribes the requester to an author. Self-follows are
// ignored, and the insert is conditional on the unique (user, author) index
// so concurrent requests cannot create duplicate edges.
func (p *ProfileController) ProfileFollow(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	author, done := p.lookupAuthor(ctx)
	if done {
		return
	}

	if userID != author.ID {
		edge := models.Follow{UserID: userID, AuthorID: author.ID}
		if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to follow")
			return
		}
	}

	ctx.Redirect(http.StatusFound, "/profile/"+author.Username)
}

// ProfileUnfollow removes the follow edge if present; unfollowing someone
// you never followed is a no-op.
func (p *ProfileController) ProfileUnfollow(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}

	author, done := p.lookupAuthor(ctx)
	if done {
		return
	}

	if err := p.db.Where("user_id = ? AND author_id = ?", userID, author.ID).
		Delete(&models.Follow{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to unfollow")
		return
	}

	ctx.Redirect(http.StatusFound, "/profile/"+author.Username)
}

// lookupAuthor resolves the :username path parameter, writing the response
// itself on failure.
func (p *ProfileController) lookupAuthor(ctx *gin.Context) (models.User, bool) {
	var author models.User
	if err := p.db.Where("username = ?", ctx.Param("username")).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40406, "user not found")
			return author, true
		}
		utils.Error(ctx, http.StatusInternalServerError, 50048, "failed to load user")
		return author, true
	}
	return author, false
}
