// Package controlplanetest provides a scriptable in-process control-plane
// server for exercising agents end to end.
package controlplanetest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Reply is one scripted response to a status poll.
type Reply struct {
	Code int
	Body any
}

// Noop answers a poll with a non-wipe command.
func Noop() Reply {
	return Reply{Code: http.StatusOK, Body: gin.H{"command": "noop"}}
}

// Wipe answers a poll with a wipe command for target.
func Wipe(target string) Reply {
	return Reply{Code: http.StatusOK, Body: controlplane.StatusResponse{Command: "wipe", TargetDrive: target}}
}

// Status answers a poll with a bare status code.
func Status(code int) Reply {
	return Reply{Code: code}
}

// Poll records one status request.
type Poll struct {
	MachineID string
	At        time.Time
}

// Server is a control-plane stub backed by httptest.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	registerCode  int
	replies       []Reply
	registrations []string
	polls         []Poll
	reports       []controlplane.StatusReport
}

// NewServer starts a stub that accepts registrations and answers every poll
// with Noop until scripted otherwise.
func NewServer() *Server {
	s := &Server{registerCode: http.StatusOK}

	r := gin.New()
	r.POST("/agent/register", s.handleRegister)
	r.GET("/agent/:machine_id/status", s.handleStatus)
	r.POST("/agent/report_status", s.handleReport)

	s.Server = httptest.NewServer(r)
	return s
}

// SetRegisterStatus sets the status code returned for registrations.
func (s *Server) SetRegisterStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerCode = code
}

// ScriptPolls queues replies for successive polls. The last reply repeats.
func (s *Server) ScriptPolls(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append([]Reply(nil), replies...)
}

func (s *Server) Registrations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.registrations...)
}

func (s *Server) Polls() []Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Poll(nil), s.polls...)
}

func (s *Server) Reports() []controlplane.StatusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]controlplane.StatusReport(nil), s.reports...)
}

// ReportsWithStatus returns the reports carrying the given status.
func (s *Server) ReportsWithStatus(status string) []controlplane.StatusReport {
	var out []controlplane.StatusReport
	for _, r := range s.Reports() {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handleRegister(c *gin.Context) {
	var req controlplane.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MachineID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "machine_id is required"})
		return
	}

	s.mu.Lock()
	s.registrations = append(s.registrations, req.MachineID)
	code := s.registerCode
	s.mu.Unlock()

	if code != http.StatusOK {
		c.JSON(code, gin.H{"error": "registration rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "registered"})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	s.polls = append(s.polls, Poll{MachineID: c.Param("machine_id"), At: time.Now()})
	reply := Noop()
	if len(s.replies) > 0 {
		reply = s.replies[0]
		if len(s.replies) > 1 {
			s.replies = s.replies[1:]
		}
	}
	s.mu.Unlock()

	if reply.Body == nil {
		c.Status(reply.Code)
		return
	}
	c.JSON(reply.Code, reply.Body)
}

func (s *Server) handleReport(c *gin.Context) {
	var report controlplane.StatusReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
