package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/pipedesk/internal/auth"
	"github.com/zulandar/pipedesk/internal/crmerr"
)

// authenticate resolves the session token into the request's actor and
// rejects the request when there is none.
func (s *Server) authenticate(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		abortWithError(c, crmerr.Unauthorized("api"))
		return
	}
	claims, err := s.issuer.Parse(token)
	if err != nil {
		abortWithError(c, &crmerr.Error{Kind: crmerr.ErrUnauthorized, Msg: "api: invalid or expired session"})
		return
	}
	c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), claims.Subject))
	c.Next()
}

// actor returns the authenticated user id. Only valid behind authenticate.
func actor(c *gin.Context) string {
	id, _ := auth.ActorFrom(c.Request.Context())
	return id
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Code     string `json:"registrationCode"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	user, err := auth.Register(s.db.WithContext(c.Request.Context()), auth.UserOpts{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Surname:  req.Surname,
	}, req.Code, s.cfg.Auth.RegistrationCode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	user, err := auth.Login(s.db.WithContext(c.Request.Context()), req.Email, req.Password)
	logins.WithLabelValues(result(err)).Inc()
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, exp, err := s.issuer.Issue(*user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.setSession(c, token, int(time.Until(exp).Seconds()))
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token, "expiresAt": exp})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.setSession(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := auth.GetUser(s.db.WithContext(c.Request.Context()), actor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if user == nil {
		abortWithError(c, &crmerr.Error{Kind: crmerr.ErrUnauthorized, Msg: "api: session user no longer exists"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) setSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", c.Request.TLS != nil, true)
}
