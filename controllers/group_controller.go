package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pulseblog/pulse/models"
	"github.com/pulseblog/pulse/utils"
)

// GroupController serves the group pages and the admin-only group management
// endpoints.
type GroupController struct {
	db *gorm.DB
}

// NewGroupController creates a new GroupController instance.
func NewGroupController(db *gorm.DB) *GroupController {
	return &GroupController{db: db}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// GroupPosts resolves a group by slug and returns its posts, newest first,
// paginated.
func (g *GroupController) GroupPosts(ctx *gin.Context) {
	slug := ctx.Param("slug")

	var group models.Group
	if err := g.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40407, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load group")
		return
	}

	page, pageSize := parsePagination(ctx)
	var posts []models.Post
	var total int64

	query := g.db.Where("group_id = ?", group.ID).
		Preload("Author").
		Order("created_at DESC, id DESC")
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to count posts")
		return
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to list posts")
		return
	}

	utils.Success(ctx, gin.H{
		"group":      group,
		"items":      posts,
		"pagination": paginationMeta(page, pageSize, total),
	})
}

// ListGroups returns all groups ordered by title.
func (g *GroupController) ListGroups(ctx *gin.Context) {
	var groups []models.Group
	if err := g.db.Order("title").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to list groups")
		return
	}
	utils.Success(ctx, gin.H{"items": groups})
}

// CreateGroup creates a new group. Admin only.
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40310, "admin access required")
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required,min=1,max=200"`
		Slug        string `json:"slug" binding:"required,min=1,max=64"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		utils.Error(ctx, http.StatusBadRequest, 40031, "slug may contain lowercase letters, digits, and hyphens only")
		return
	}

	group := models.Group{
		Title:       utils.Sanitize(strings.TrimSpace(req.Title)),
		Slug:        slug,
		Description: utils.Sanitize(req.Description),
	}

	var existing int64
	if err := g.db.Model(&models.Group{}).Where("slug = ?", slug).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to check slug")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40910, "slug already in use")
		return
	}

	if err := g.db.Create(&group).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to create group")
		return
	}

	utils.Success(ctx, gin.H{"group": group})
}

// DeleteGroup removes a group. Posts referencing it keep living: their group
// reference is cleared in the same transaction before the row goes away.
// Admin only.
func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40311, "admin access required")
		return
	}

	slug := ctx.Param("slug")
	var group models.Group
	if err := g.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40408, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to load group")
		return
	}

	err := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("group_id = ?", group.ID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to delete group")
		return
	}

	utils.InvalidateByPrefix("cache:posts:index:")
	utils.InvalidateByPrefix("cache:post:detail:")

	utils.Success(ctx, gin.H{"message": "group deleted"})
}
