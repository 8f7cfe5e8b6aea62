package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/services"
)

// MaxSnapshotSize bounds the body of a sync upload.
const MaxSnapshotSize = 64 << 20

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SessionResponse struct {
	UserID     int64     `json:"user_id"`
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

type WebNameRequest struct {
	TournamentID *int64 `json:"tournament_id" binding:"required"`
}

type WebNameStatusResponse struct {
	WebName string `json:"web_name"`
	Status  string `json:"status"`
}

// MetadataRequest carries the descriptive fields. Date uses YYYY-MM-DD;
// omitted fields are cleared.
type MetadataRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Date     *string `json:"date"`
}

type TournamentResponse struct {
	WebName      string     `json:"web_name"`
	TournamentID int64      `json:"tournament_id"`
	Name         *string    `json:"name,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Date         *string    `json:"date,omitempty"`
	Synced       bool       `json:"synced"`
	SaveTime     *time.Time `json:"save_time,omitempty"`
}

type ListingResponse struct {
	Day      string               `json:"day"`
	Upcoming []TournamentResponse `json:"upcoming"`
	Past     []TournamentResponse `json:"past"`
}

type SaveStatusResponse struct {
	WebName  string     `json:"web_name"`
	State    string     `json:"state"`
	SaveTime *time.Time `json:"save_time,omitempty"`
}

type SyncResponse struct {
	WebName  string    `json:"web_name"`
	SaveTime time.Time `json:"save_time"`
}

func toSession(s *services.Session) SessionResponse {
	return SessionResponse{UserID: s.UserID, Token: s.Token, Expiration: s.Expiration}
}

func toTournament(t *models.Tournament) TournamentResponse {
	r := TournamentResponse{
		WebName:      t.WebName,
		TournamentID: t.TournamentID,
		Name:         t.Name,
		Location:     t.Location,
		Synced:       t.Synced,
		SaveTime:     t.SaveTime,
	}
	if t.Date != nil {
		d := t.Date.Format(time.DateOnly)
		r.Date = &d
	}
	return r
}

func toTournaments(ts []*models.Tournament) []TournamentResponse {
	out := make([]TournamentResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTournament(t))
	}
	return out
}

func (s *HTTPServer) register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := s.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSession(session))
}

func (s *HTTPServer) requestToken(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := s.users.RequestToken(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toSession(session))
}

func (s *HTTPServer) logout(c *gin.Context) {
	if err := s.users.Logout(c.Request.Context(), currentUser(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) deleteUser(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), currentUser(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) listTournaments(c *gin.Context) {
	l, err := s.tournaments.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ListingResponse{
		Day:      l.Day,
		Upcoming: toTournaments(l.Upcoming),
		Past:     toTournaments(l.Past),
	})
}

func (s *HTTPServer) checkWebName(c *gin.Context) {
	webName := c.Param("name")
	tournamentID, err := strconv.ParseInt(c.Query("tournament_id"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("tournament_id: %w", err))
		return
	}

	status, err := s.tournaments.CheckWebName(c.Request.Context(), currentUser(c), tournamentID, webName)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, WebNameStatusResponse{WebName: webName, Status: status.String()})
}

func (s *HTTPServer) registerWebName(c *gin.Context) {
	var req WebNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	t, err := s.tournaments.RegisterWebName(c.Request.Context(), currentUser(c), *req.TournamentID, c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toTournament(t))
}

func (s *HTTPServer) releaseWebName(c *gin.Context) {
	if err := s.tournaments.Release(c.Request.Context(), currentUser(c), c.Param("name")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) updateMetadata(c *gin.Context) {
	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	md := models.TournamentMetadata{Name: req.Name, Location: req.Location}
	if req.Date != nil {
		d, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			badRequest(c, fmt.Errorf("date: %w", err))
			return
		}
		md.Date = &d
	}

	if err := s.tournaments.UpdateMetadata(c.Request.Context(), currentUser(c), c.Param("web_name"), md); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) markModified(c *gin.Context) {
	if err := s.tournaments.MarkModified(c.Request.Context(), currentUser(c), c.Param("web_name")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// confirmSync takes the raw tournament snapshot as the request body.
func (s *HTTPServer) confirmSync(c *gin.Context) {
	webName := c.Param("web_name")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxSnapshotSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "snapshot too large"})
			return
		}
		badRequest(c, err)
		return
	}
	if len(body) == 0 {
		s.fail(c, fmt.Errorf("%w: empty snapshot", common.ErrInvalidInput))
		return
	}

	at, err := s.tournaments.ConfirmSync(c.Request.Context(), currentUser(c), webName, body)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncResponse{WebName: webName, SaveTime: at})
}

func (s *HTTPServer) saveStatus(c *gin.Context) {
	webName := c.Param("web_name")
	st, err := s.tournaments.SaveStatus(c.Request.Context(), webName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveStatusResponse{WebName: webName, State: st.State.String(), SaveTime: st.SaveTime})
}

func (s *HTTPServer) snapshot(c *gin.Context) {
	data, err := s.tournaments.Snapshot(c.Request.Context(), c.Param("web_name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}
