package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// --- Public endpoints (no auth) ---
	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh, s.requireRefresh)
	api.GET("/forum/categories", s.handleForumCategories)
	api.GET("/billing/packages", s.handlePackages)
	api.GET("/studio/tools", s.handleStudioTools)

	// --- Public reads that widen for signed-in members ---
	open := api.Group("", s.optionalAuth)
	open.GET("/scripts", s.handleListScripts)
	open.GET("/scripts/:id", s.handleGetScript)
	open.GET("/blobs/:cid", s.handleGetBlob)

	// --- WebSocket (token in the query string) ---
	s.echo.GET("/ws", s.handleWebSocket)

	// --- Member API ---
	m := api.Group("", s.requireAuth, s.requireMember)
	verified := s.requireVerified

	m.GET("/me", s.handleMe)
	m.PATCH("/me", s.handleUpdateMe)
	m.POST("/me/password", s.handleChangePassword)

	m.GET("/users", s.handleListUsers)
	m.GET("/users/:id", s.handleGetUser)
	m.GET("/users/:id/achievements", s.handleUserAchievements)
	m.GET("/users/:id/scripts", s.handleUserScripts)

	m.GET("/verification", s.handleGetVerification)
	m.POST("/verification", s.handleSubmitVerification)

	m.POST("/scripts", s.handleCreateScript)
	m.PUT("/scripts/:id", s.handleUpdateScript)
	m.DELETE("/scripts/:id", s.handleDeleteScript)

	m.GET("/projects", s.handleListProjects)
	m.POST("/projects", s.handleCreateProject, verified)
	m.GET("/projects/:id", s.handleGetProject)
	m.PUT("/projects/:id", s.handleUpdateProject)
	m.DELETE("/projects/:id", s.handleDeleteProject)
	m.POST("/projects/:id/members", s.handleAddProjectMember)
	m.DELETE("/projects/:id/members/:userId", s.handleRemoveProjectMember)

	m.GET("/forum/posts", s.handleListPosts)
	m.POST("/forum/posts", s.handleCreatePost, verified)
	m.GET("/forum/posts/:id", s.handleGetPost)
	m.PATCH("/forum/posts/:id", s.handleModeratePost)
	m.DELETE("/forum/posts/:id", s.handleDeletePost)
	m.POST("/forum/posts/:id/replies", s.handleCreateReply, verified)
	m.DELETE("/forum/replies/:id", s.handleDeleteReply)

	m.GET("/messages", s.handleConversations)
	m.POST("/messages", s.handleSendMessage, verified)
	m.GET("/messages/:userId", s.handleConversation)
	m.POST("/messages/:userId/read", s.handleMarkConversationRead)

	m.GET("/friends", s.handleListFriends)
	m.DELETE("/friends/:id", s.handleRemoveFriend)
	m.GET("/friends/requests", s.handlePendingRequests)
	m.POST("/friends/requests", s.handleSendFriendRequest)
	m.POST("/friends/requests/:id/:action", s.handleRespondFriendRequest)

	m.GET("/notifications", s.handleListNotifications)
	m.GET("/notifications/unread-count", s.handleUnreadCount)
	m.POST("/notifications/read-all", s.handleMarkAllRead)
	m.POST("/notifications/:id/read", s.handleMarkRead)
	m.DELETE("/notifications/:id", s.handleDeleteNotification)

	m.GET("/billing/balance", s.handleBalance)
	m.GET("/billing/transactions", s.handleTransactions)
	m.POST("/billing/purchase", s.handlePurchase)

	m.POST("/studio/generate", s.handleGenerate)
	m.GET("/studio/generations", s.handleGenerations)
	m.GET("/studio/assets", s.handleListAssets)
	m.POST("/studio/assets", s.handleUploadAsset)
	m.GET("/studio/assets/:id", s.handleGetAsset)
	m.DELETE("/studio/assets/:id", s.handleDeleteAsset)

	m.GET("/festivals", s.handleListFestivals)
	m.POST("/festivals", s.handleSubmitFestival, verified)
	m.GET("/festivals/:id", s.handleGetFestival)
	m.POST("/festivals/:id/submit", s.handleAdvanceFestival, verified)
	m.POST("/festivals/:id/withdraw", s.handleAdvanceFestival)

	m.POST("/reports", s.handleCreateReport)

	m.GET("/tutorial", s.handleTutorial)
	m.POST("/tutorial/advance", s.handleTutorialAdvance)
	m.POST("/tutorial/skip", s.handleTutorialSkip)
	m.POST("/tutorial/reset", s.handleTutorialReset)

	m.POST("/blobs", s.handleUploadBlob)

	// --- Admin API (admin role or admin key) ---
	admin := api.Group("/admin", s.requireAuth, s.requireAdmin)
	admin.GET("/verification", s.handlePendingVerifications)
	admin.POST("/verification/:userId", s.handleDecideVerification)
	admin.PATCH("/users/:id", s.handleAdminUpdateUser)
	admin.DELETE("/users/:id", s.handleAdminDeleteUser)
	admin.POST("/credits", s.handleGrantCredits)
	admin.GET("/festivals", s.handleAdminListFestivals)
	admin.POST("/festivals/:id", s.handleDecideFestival)
	admin.GET("/reports", s.handleListReports)
	admin.POST("/reports/:id", s.handleResolveReport)
}

// handleHealth returns basic server health information.
// GET /api/health
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"studio":  s.studio.Enabled(),
	})
}
