package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u *entities.User) userView {
	return userView{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        userView `json:"user"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, token, err := s.deps.Auth.Register(c.Request().Context(), req.Email, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":      "user created",
		"user":         newUserView(user),
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleLogin accepts JSON or an OAuth2 password form where username is the email.
func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}

	user, token, err := s.deps.Auth.Login(c.Request().Context(), email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", User: newUserView(user)})
}

func (s *Server) handleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, newUserView(currentUser(c)))
}
