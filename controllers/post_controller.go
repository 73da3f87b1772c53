package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulseblog/pulse/config"
	"github.com/pulseblog/pulse/middleware"
	"github.com/pulseblog/pulse/models"
	"github.com/pulseblog/pulse/utils"
)

// PostController serves the post pages and the create/edit/comment actions.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// postForm carries the submitted post fields. Group is a slug and optional;
// the image arrives as a separate multipart file.
type postForm struct {
	Text  string `form:"text" json:"text"`
	Group string `form:"group" json:"group"`
}

// validate sanitizes the submitted text and reports per-field problems.
func (f postForm) validate() (string, map[string]string) {
	fieldErrs := map[string]string{}
	text := strings.TrimSpace(utils.Sanitize(f.Text))
	if text == "" {
		fieldErrs["text"] = "text cannot be empty"
	}
	return text, fieldErrs
}

// Index returns all posts, most recent first, paginated. Pages are cached
// briefly so the busiest page stays cheap.
func (p *PostController) Index(ctx *gin.Context) {
	cfg := config.Get()
	page, pageSize := parsePagination(ctx)

	cacheKey := fmt.Sprintf("cache:posts:index:page=%d:size=%d", page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var posts []models.Post
	var total int64

	query := p.db.Preload("Author").Preload("Group").Order("created_at DESC, id DESC")
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to count posts")
		return
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list posts")
		return
	}

	payload := gin.H{
		"items":      posts,
		"pagination": paginationMeta(page, pageSize, total),
	}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Duration(cfg.IndexCacheTTLS)*time.Second)
	utils.Success(ctx, payload)
}

// PostDetail returns a single post with its comments, newest first.
func (p *PostController) PostDetail(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.Preload("Author").Preload("Group").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load post")
		return
	}

	var comments []models.Comment
	if err := p.db.Where("post_id = ?", post.ID).Preload("Author").
		Order("created_at DESC, id DESC").Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load comments")
		return
	}
	post.Comments = comments

	payload := gin.H{"post": post}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:post:detail:"+postID, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// NewPostForm renders the empty creation form: blank fields plus the groups
// available for the select.
func (p *PostController) NewPostForm(ctx *gin.Context) {
	var groups []models.Group
	if err := p.db.Order("title").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list groups")
		return
	}
	utils.Success(ctx, gin.H{
		"form":   gin.H{"text": "", "group": ""},
		"groups": groups,
	})
}

// PostCreate persists a new post owned by the requester and redirects to
// their profile. Validation failures come back as 400 with field errors so
// the form can be re-rendered.
func (p *PostController) PostCreate(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var form postForm
	_ = ctx.ShouldBind(&form) // empty bodies surface as field errors below

	text, fieldErrs := form.validate()
	groupID, err := p.resolveGroup(form.Group, fieldErrs)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to resolve group")
		return
	}
	imageURL, imgErr := saveImage(ctx)
	if imgErr != nil {
		fieldErrs["image"] = imgErr.Error()
	}
	if len(fieldErrs) > 0 {
		utils.ValidationError(ctx, 40020, fieldErrs)
		return
	}

	post := models.Post{
		Text:     text,
		AuthorID: userID,
		GroupID:  groupID,
		Image:    imageURL,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:index:")

	ctx.Redirect(http.StatusFound, "/profile/"+getUsername(ctx))
}

// EditPostForm renders the edit form bound to the existing post. Non-authors
// are silently sent back to the post detail page.
func (p *PostController) EditPostForm(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	userID, _ := getUserID(ctx)
	if post.AuthorID != userID {
		ctx.Redirect(http.StatusFound, "/posts/"+postID)
		return
	}

	groupSlug := ""
	if post.GroupID != nil {
		var group models.Group
		if err := p.db.First(&group, *post.GroupID).Error; err == nil {
			groupSlug = group.Slug
		}
	}
	var groups []models.Group
	if err := p.db.Order("title").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list groups")
		return
	}
	utils.Success(ctx, gin.H{
		"form":    gin.H{"text": post.Text, "group": groupSlug, "image": post.Image},
		"groups":  groups,
		"is_edit": true,
	})
}

// PostEdit updates a post in place. Only the author may edit; anyone else is
// redirected to the detail page without mutation. Author and publication
// date never change.
func (p *PostController) PostEdit(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if post.AuthorID != userID {
		ctx.Redirect(http.StatusFound, "/posts/"+postID)
		return
	}

	var form postForm
	_ = ctx.ShouldBind(&form)

	text, fieldErrs := form.validate()
	groupID, err := p.resolveGroup(form.Group, fieldErrs)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to resolve group")
		return
	}
	imageURL, imgErr := saveImage(ctx)
	if imgErr != nil {
		fieldErrs["image"] = imgErr.Error()
	}
	if len(fieldErrs) > 0 {
		utils.ValidationError(ctx, 40021, fieldErrs)
		return
	}

	post.Text = text
	post.GroupID = groupID
	if imageURL != "" {
		post.Image = imageURL
	}
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to update post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:index:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)

	ctx.Redirect(http.StatusFound, "/posts/"+postID)
}

// AddComment attaches a comment to a post. The redirect to the detail page
// happens whether or not the text validates; invalid submissions are simply
// not persisted.
func (p *PostController) AddComment(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}

	var form struct {
		Text string `form:"text" json:"text"`
	}
	_ = ctx.ShouldBind(&form)

	text := strings.TrimSpace(utils.Sanitize(form.Text))
	if text != "" {
		comment := models.Comment{
			PostID:   post.ID,
			AuthorID: userID,
			Text:     text,
		}
		if err := p.db.Create(&comment).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create comment")
			return
		}
		utils.InvalidateByPrefix("cache:post:detail:" + postID)
	}

	ctx.Redirect(http.StatusFound, "/posts/"+postID)
}

// resolveGroup maps an optional group slug to its ID, recording a field
// error for unknown slugs. Database failures are returned as-is.
func (p *PostController) resolveGroup(slug string, fieldErrs map[string]string) (*uint, error) {
	if slug == "" {
		return nil, nil
	}
	var group models.Group
	if err := p.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fieldErrs["group"] = "unknown group"
			return nil, nil
		}
		return nil, err
	}
	return &group.ID, nil
}

// saveImage stores an optional uploaded image and returns its public URL.
// A request without an image upload yields ("", nil).
func saveImage(ctx *gin.Context) (string, error) {
	file, header, err := ctx.Request.FormFile("image")
	if err != nil {
		return "", nil
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	const maxSize = 10 << 20
	if header.Size > maxSize {
		return "", errors.New("image exceeds 10MB")
	}

	cfg := config.Get()
	now := time.Now()
	dir := filepath.Join(cfg.UploadDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, uuid.New().String()+ext)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxSize)); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	// The URL must stay valid for absolute UploadDir values too, so it is
	// built from the path relative to the served directory.
	rel, err := filepath.Rel(cfg.UploadDir, dst)
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return "/static/uploads/" + filepath.ToSlash(rel), nil
}

// parsePagination reads the page number from the query; the page size comes
// from configuration unless overridden within limits.
func parsePagination(ctx *gin.Context) (int, int) {
	page := 1
	pageSize := config.Get().PageSize
	if p, err := strconv.Atoi(ctx.Query("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(ctx.Query("page_size")); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func paginationMeta(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func getUsername(ctx *gin.Context) string {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return ""
	}
	name, _ := value.(string)
	return name
}

func isAdmin(ctx *gin.Context) bool {
	uname := getUsername(ctx)
	if uname == "" {
		return false
	}
	cfg := config.Get()
	for _, u := range cfg.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
