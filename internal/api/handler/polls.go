package handler

import (
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

// pollView adds the computed percentages to a poll.
type pollView struct {
	*models.PollQuestion
	TotalVotes  int   `json:"total_votes"`
	Percentages []int `json:"percentages"`
}

func viewPoll(p *models.PollQuestion) pollView {
	return pollView{PollQuestion: p, TotalVotes: p.TotalVotes(), Percentages: p.Percentages()}
}

// GetActivePoll returns the active poll as a list of zero or one rows.
func (h *Handler) GetActivePoll(c *gin.Context) {
	poll, err := h.Polls.Active(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if poll == nil {
		c.JSON(http.StatusOK, []pollView{})
		return
	}
	c.JSON(http.StatusOK, []pollView{viewPoll(poll)})
}

func (h *Handler) GetPoll(c *gin.Context) {
	poll, err := h.Polls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewPoll(poll))
}

type createPollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (h *Handler) CreatePoll(c *gin.Context) {
	var req createPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	poll, err := h.Polls.Create(c.Request.Context(), bearer(c), req.Question, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewPoll(poll))
}

type voteRequest struct {
	OptionID int `json:"option_id"`
}

// VotePoll counts one vote per caller IP and poll.
func (h *Handler) VotePoll(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	voter := ""
	if ip := session.ClientIP(c.Request.Header); ip != session.UnknownIP {
		voter = "ip:" + ip
	}
	poll, err := h.Polls.Vote(c.Request.Context(), c.Param("id"), req.OptionID, voter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewPoll(poll))
}
