package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/masaar/masaar-node/pkg/crypto"
	"github.com/masaar/masaar-node/pkg/reliability"
)

// IDRequest is the body of PUT /api/v1/node/id
type IDRequest struct {
	ID *string `json:"id"`
}

// IDResponse reports the node identifier
type IDResponse struct {
	ID  string `json:"id"`
	Set bool   `json:"set"`
}

// WireResponse carries a built message
type WireResponse struct {
	Wire        string `json:"wire"`
	Fingerprint string `json:"fingerprint"`
	Seq         uint64 `json:"seq"`
}

// DataRequest is the body of POST /api/v1/messages/data
type DataRequest struct {
	Payload  string  `json:"payload"`
	Dst      string  `json:"dst"`
	Seq      *uint64 `json:"seq,omitempty"`
	Reliable bool    `json:"reliable"`
}

// AckRequest is the body of POST /api/v1/messages/ack and /nack
type AckRequest struct {
	Dst    string `json:"dst"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason,omitempty"`
}

// IncomingRequest is the body of POST /api/v1/incoming
type IncomingRequest struct {
	Wire        string `json:"wire"`
	Fingerprint string `json:"fingerprint,omitempty"` // Optional BLAKE2b-256 hex of Wire
}

// IncomingResponse reports the routing decision for a wire text
type IncomingResponse struct {
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Outcome string `json:"outcome"` // Bridge form, e.g. DELIVER:hi
	Type    string `json:"type"`
	Src     string `json:"src,omitempty"`
	Seq     uint64 `json:"seq"`
	Reply   string `json:"reply,omitempty"`
}

// PendingEntry describes one in-flight reliable send
type PendingEntry struct {
	Dst         string    `json:"dst"`
	Seq         uint64    `json:"seq"`
	Fingerprint string    `json:"fingerprint"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	SentAt      time.Time `json:"sentAt"`
	NextAttempt time.Time `json:"nextAttempt,omitempty"`
	LastReason  string    `json:"lastReason,omitempty"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request",
		Message: message,
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"nodeId":    s.node.ID(),
		"timestamp": time.Now().Unix(),
	})
}

// handleGetID handles GET /api/v1/node/id
func (s *Server) handleGetID(c *gin.Context) {
	c.JSON(http.StatusOK, IDResponse{ID: s.node.ID(), Set: s.node.Identity().IsSet()})
}

// handleSetID handles PUT /api/v1/node/id
func (s *Server) handleSetID(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ID == nil {
		badRequest(c, "id is required")
		return
	}

	s.node.SetID(*req.ID)
	c.JSON(http.StatusOK, IDResponse{ID: s.node.ID(), Set: true})
}

// handleNodeStats handles GET /api/v1/node/stats
func (s *Server) handleNodeStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.Stats())
}

// handleHello handles POST /api/v1/messages/hello
func (s *Server) handleHello(c *gin.Context) {
	c.JSON(http.StatusOK, wireResponse(s.node.Hello(), 0))
}

// handleData handles POST /api/v1/messages/data
func (s *Server) handleData(c *gin.Context) {
	var req DataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	switch {
	case req.Reliable && req.Seq != nil:
		badRequest(c, "seq is assigned by the node for reliable sends")

	case req.Reliable:
		wire, seq, err := s.node.SendReliable(req.Payload, req.Dst)
		if err != nil {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "Send failed",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, wireResponse(wire, seq))

	case req.Seq != nil:
		c.JSON(http.StatusOK, wireResponse(s.node.SendSeq(req.Payload, req.Dst, *req.Seq), *req.Seq))

	default:
		c.JSON(http.StatusOK, wireResponse(s.node.Send(req.Payload, req.Dst), 0))
	}
}

// handleAck handles POST /api/v1/messages/ack
func (s *Server) handleAck(c *gin.Context) {
	var req AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, wireResponse(s.node.Ack(req.Dst, req.Seq), req.Seq))
}

// handleNack handles POST /api/v1/messages/nack
func (s *Server) handleNack(c *gin.Context) {
	var req AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, wireResponse(s.node.Nack(req.Dst, req.Seq, req.Reason), req.Seq))
}

// handleIncoming handles POST /api/v1/incoming. Undecodable wire text is
// not a request error; it routes to DROP:INVALID.
func (s *Server) handleIncoming(c *gin.Context) {
	var req IncomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	// A mismatch means the relay altered the text; it is never routed
	if req.Fingerprint != "" && !crypto.VerifyFingerprint(req.Wire, req.Fingerprint) {
		badRequest(c, "wire does not match fingerprint")
		return
	}

	receipt := s.node.Process(req.Wire)

	c.JSON(http.StatusOK, IncomingResponse{
		Action:  receipt.Outcome.Action.String(),
		Payload: receipt.Outcome.Payload,
		Reason:  string(receipt.Outcome.Reason),
		Outcome: receipt.Outcome.String(),
		Type:    receipt.Message.Type.String(),
		Src:     receipt.Message.Src,
		Seq:     receipt.Message.Seq,
		Reply:   receipt.Reply,
	})
}

// handlePending handles GET /api/v1/reliability/pending
func (s *Server) handlePending(c *gin.Context) {
	entries := s.node.Tracker().Pending()

	out := make([]PendingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, pendingEntry(e))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(out),
		"pending": out,
	})
}

func wireResponse(wire string, seq uint64) WireResponse {
	return WireResponse{
		Wire:        wire,
		Fingerprint: crypto.Fingerprint(wire),
		Seq:         seq,
	}
}

func pendingEntry(e reliability.Entry) PendingEntry {
	return PendingEntry{
		Dst:         e.Dst,
		Seq:         e.Seq,
		Fingerprint: e.Fingerprint,
		State:       e.State.String(),
		Attempts:    e.Attempts,
		SentAt:      e.SentAt,
		NextAttempt: e.NextAttempt,
		LastReason:  e.LastReason,
	}
}
