package handler

import (
	"socialprofiles/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

// Routes groups the API handlers mounted under /api/v1.
type Routes struct {
	Auth      *AuthHandler
	Profiles  *ProfileHandler
	Relations *RelationHandler
	JWTSecret string
}

// Mount registers every API route on api.
func (r Routes) Mount(api *gin.RouterGroup) {
	// Auth routes
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", r.Auth.RegisterUser)
		authRoutes.POST("/login", r.Auth.LoginUser)
	}

	// Search is public; signed-in viewers also get relation flags.
	api.GET("/profiles/search", auth.OptionalAuthMiddleware(r.JWTSecret), r.Profiles.SearchProfiles)

	// Profile routes (protected)
	profileRoutes := api.Group("/profiles")
	profileRoutes.Use(auth.AuthMiddleware(r.JWTSecret))
	{
		profileRoutes.GET("", r.Profiles.ListProfiles)
		profileRoutes.GET("/to-invite", r.Profiles.ListToInvite)
		profileRoutes.GET("/me", r.Profiles.GetMe)
		profileRoutes.PATCH("/me", r.Profiles.UpdateMe)
		profileRoutes.GET("/me/invites", r.Profiles.ListInvitations)
		profileRoutes.GET("/me/invites/sent", r.Profiles.ListSentInvitations)
		profileRoutes.GET("/me/friends", r.Profiles.ListFriends)
		profileRoutes.GET("/me/events", r.Relations.StreamEvents)
		profileRoutes.GET("/:slug", r.Profiles.GetProfile) // Must be after the static routes
	}

	// Relationship routes (protected)
	relationRoutes := api.Group("/relationships")
	relationRoutes.Use(auth.AuthMiddleware(r.JWTSecret))
	{
		relationRoutes.POST("/:id/invite", r.Relations.SendInvitation)
		relationRoutes.POST("/:id/accept", r.Relations.AcceptInvitation)
		relationRoutes.POST("/:id/reject", r.Relations.RejectInvitation)
		relationRoutes.POST("/:id/remove", r.Relations.RemoveRelationship)
	}
}
