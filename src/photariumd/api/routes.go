package api

import "github.com/gin-gonic/gin"

// RegisterRoutes configures all API routes on the given router
func (a *API) RegisterRoutes(router *gin.Engine) {
	// Root endpoint - API discovery
	router.GET("/", a.Base.HandleRoot)

	// Auth routes - delegate to auth.Handler
	authGroup := router.Group("/auth")
	authGroup.Use(a.rateLimitAuth())
	{
		authGroup.POST("/login", a.Auth.HandleLogin)
		authGroup.POST("/logout", a.Auth.HandleLogout)
		authGroup.GET("/validate", a.Auth.HandleValidate)
	}

	// Account creation is an admin operation
	authAdmin := router.Group("/auth")
	authAdmin.Use(a.rateLimitAuth(), a.adminAccessRequired())
	{
		authAdmin.POST("/create", a.Auth.HandleCreate)
	}

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(a.rateLimitAPI())
	{
		v1.GET("/health", a.Base.HandleHealth)
		v1.GET("/version", a.Base.HandleVersion)

		// Album routes - read operations (visibility-filtered, anonymous ok)
		albums := v1.Group("/albums")
		albums.Use(a.optionalAuth())
		{
			albums.GET("/tree", a.Albums.HandleTree)
			albums.GET("/:id", a.Albums.HandleGet)
			albums.GET("/:id/count", a.Albums.HandleCount)
			albums.GET("/:id/photos", a.Albums.HandlePhotos)
		}

		// Album routes - write operations (admin only)
		albumsAdmin := v1.Group("/albums")
		albumsAdmin.Use(a.adminAccessRequired())
		{
			albumsAdmin.POST("", a.Albums.HandleCreate)
			albumsAdmin.PUT("/:id", a.Albums.HandleUpdate)
			albumsAdmin.DELETE("/:id", a.Albums.HandleDelete)
			albumsAdmin.POST("/reorder", a.Albums.HandleReorder)
		}

		// Photo upload requires a role with upload rights; the handler then
		// checks the per-provider allow list
		albumsUpload := v1.Group("/albums")
		albumsUpload.Use(a.uploadAccessRequired())
		{
			albumsUpload.POST("/:id/photos", a.Photos.HandleUpload)
		}

		// Photo routes - read operations (visibility-filtered)
		photos := v1.Group("/photos")
		photos.Use(a.optionalAuth())
		{
			photos.GET("/:id", a.Photos.HandleGet)
			photos.GET("/:id/url", a.Photos.HandleURL)
		}

		// Photo routes - write operations
		photosWrite := v1.Group("/photos")
		photosWrite.Use(a.uploadAccessRequired())
		{
			photosWrite.PUT("/:id", a.Photos.HandleUpdate)
			photosWrite.DELETE("/:id", a.Photos.HandleDelete)
		}

		// Provider routes - status listing is admin only, like all
		// provider configuration
		providers := v1.Group("/providers")
		providers.Use(a.adminAccessRequired())
		{
			providers.GET("", a.Providers.HandleStatuses)
			providers.GET("/:id", a.Providers.HandleGet)
			providers.PUT("/:id", a.Providers.HandleUpsert)
			providers.PUT("/:id/enabled", a.Providers.HandleSetEnabled)
			providers.DELETE("/:id", a.Providers.HandleDelete)
			providers.POST("/:id/test", a.Providers.HandleTest)
			providers.GET("/:id/tree", a.Providers.HandleTree)
			providers.GET("/:id/oauth/url", a.Providers.HandleOAuthURL)
			providers.POST("/:id/oauth/exchange", a.Providers.HandleOAuthExchange)
		}

		// Group routes - admin only
		groups := v1.Group("/groups")
		groups.Use(a.adminAccessRequired())
		{
			groups.GET("", a.Groups.HandleList)
			groups.GET("/:alias", a.Groups.HandleGet)
			groups.POST("", a.Groups.HandleCreate)
			groups.PUT("/:alias", a.Groups.HandleUpdate)
			groups.DELETE("/:alias", a.Groups.HandleDelete)
		}
	}

	// Local file serving (URLs handed out by the local provider). The
	// handler resolves the owning album and checks visibility itself; the
	// route only carries its own rate budget since photo streaming dwarfs
	// the JSON API.
	router.GET("/v1/files/local/*path", a.rateLimitFiles(), a.Files.HandleGetLocal)
}
