// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/inw/serpback/internal/handlers"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(app.repo)
	u := handlers.NewUser(app.Accounts, app.Sessions)

	e.GET("/health", h.Health)

	api := e.Group("/api/user")

	// Public
	api.POST("/login", u.Login)
	api.POST("/logout", u.Logout)
	api.POST("/register", u.Register)
	api.GET("/register/:token", u.ConfirmRegistration)
	api.POST("/reset/init", u.PasswordResetInit)
	api.POST("/reset/finish/:token", u.PasswordResetFinish)

	// Owner or admin
	api.GET("/:login", u.Get, requireAuth)
	api.PUT("/:login", u.Update, requireAuth)

	// Admin only
	api.GET("", u.List, requireAuth, requireAdmin)
	api.POST("/create", u.Create, requireAuth, requireAdmin)
	api.PUT("/:login/authorities", u.UpdateAuthorities, requireAuth, requireAdmin)
	api.DELETE("/delete/:login", u.Delete, requireAuth, requireAdmin)
}
