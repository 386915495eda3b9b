package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suraksha-labs/suraksha/backend/internal/ratelimit"
	"github.com/suraksha-labs/suraksha/backend/internal/stories"
	"github.com/suraksha-labs/suraksha/backend/internal/users"
	"go.uber.org/zap"
)

type signupPayload struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Demographic string `json:"demographic"`
	Password    string `json:"password"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var payload signupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	account, err := h.users.Signup(c.Request.Context(), users.SignupRequest{
		Name:        payload.Name,
		Gender:      payload.Gender,
		Email:       payload.Email,
		Phone:       payload.Phone,
		Demographic: payload.Demographic,
		Password:    payload.Password,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    account.ID,
		"name":  account.Name,
		"email": account.Email,
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	account, err := h.users.Login(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), account.ID, account.Demographic)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": expiresIn,
		"user": gin.H{
			"id":          account.ID,
			"name":        account.Name,
			"email":       account.Email,
			"demographic": account.Demographic,
		},
	})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	account, err := h.users.Profile(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type createStoryPayload struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

func (h *httpHandler) handleCreateStory(c *gin.Context) {
	if !h.allow(c, ratelimit.StoryCreatePolicy, "") {
		return
	}

	var payload createStoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	story, err := h.stories.CreateStory(c.Request.Context(), c.GetString(userIDContextKey), payload.Text, payload.Tags)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *httpHandler) handleListStories(c *gin.Context) {
	viewerID := c.GetString(userIDContextKey)

	authorID := c.Query("user")
	if authorID == "me" {
		if viewerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
			return
		}
		authorID = viewerID
	}

	page, err := h.stories.ListStories(c.Request.Context(), stories.ListQuery{
		Page:     intQuery(c, "page", 1),
		Limit:    intQuery(c, "limit", 0),
		Tag:      c.Query("tag"),
		AuthorID: authorID,
		ViewerID: viewerID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// handleMyStories is the legacy alias for listing the caller's own stories.
func (h *httpHandler) handleMyStories(c *gin.Context) {
	viewerID := c.GetString(userIDContextKey)
	page, err := h.stories.ListStories(c.Request.Context(), stories.ListQuery{
		Page:     intQuery(c, "page", 1),
		Limit:    intQuery(c, "limit", 0),
		AuthorID: viewerID,
		ViewerID: viewerID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleGetStory(c *gin.Context) {
	detail, err := h.stories.GetStory(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type commentPayload struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	if !h.allow(c, ratelimit.CommentCreatePolicy, "") {
		return
	}

	var payload commentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comment, err := h.stories.AddComment(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey), payload.Text)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleUpvoteStory(c *gin.Context) {
	storyID := c.Param("id")
	if !h.allow(c, ratelimit.UpvotePolicy, storyID) {
		return
	}
	upvotes, err := h.stories.UpvoteStory(c.Request.Context(), storyID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upvotes": upvotes})
}

func (h *httpHandler) handleUpvoteComment(c *gin.Context) {
	commentID := c.Param("id")
	if !h.allow(c, ratelimit.UpvotePolicy, commentID) {
		return
	}
	upvotes, err := h.stories.UpvoteComment(c.Request.Context(), commentID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upvotes": upvotes})
}

type reactPayload struct {
	Reaction string `json:"reaction"`
}

func (h *httpHandler) handleReactStory(c *gin.Context) {
	h.handleReact(c, stories.ItemStory)
}

func (h *httpHandler) handleReactComment(c *gin.Context) {
	h.handleReact(c, stories.ItemComment)
}

func (h *httpHandler) handleReact(c *gin.Context, kind stories.ItemKind) {
	var payload reactPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	value, err := stories.ParseReaction(payload.Reaction)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	itemID := c.Param("id")
	userID := c.GetString(userIDContextKey)

	var counts stories.ReactionCounts
	if kind == stories.ItemComment {
		counts, err = h.stories.ReactToComment(c.Request.Context(), itemID, userID, value)
	} else {
		counts, err = h.stories.ReactToStory(c.Request.Context(), itemID, userID, value)
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": counts, "myReaction": string(value)})
}

type sharePayload struct {
	Platform string `json:"platform"`
}

func (h *httpHandler) handleShareStory(c *gin.Context) {
	var payload sharePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	platform, err := stories.ParsePlatform(payload.Platform)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	shares, err := h.stories.ShareStory(c.Request.Context(), c.Param("id"), platform)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
