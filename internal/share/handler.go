package share

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/auth"
	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/respond"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

type Calculator interface {
	Calculate(ctx context.Context, req loan.Request) (loan.Quote, error)
}

type Request struct {
	Channel string       `json:"channel"`
	Phone   string       `json:"phone,omitempty"`
	Email   string       `json:"email,omitempty"`
	Request loan.Request `json:"request"`
}

type Response struct {
	Channel string     `json:"channel"`
	Link    string     `json:"link,omitempty"`
	Sent    bool       `json:"sent"`
	Summary string     `json:"summary"`
	Quote   loan.Quote `json:"quote"`
}

// Handler shares a freshly calculated quote. Mail is nil when SMTP is not
// configured. Email needs a signed in session; WhatsApp links do not.
type Handler struct {
	Calc Calculator
	Mail Sender
	Log  *logrus.Logger
}

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Channel = strings.ToLower(strings.TrimSpace(req.Channel))

	switch req.Channel {
	case ChannelWhatsApp:
	case ChannelEmail:
		if _, ok := auth.SessionFrom(r.Context()); !ok {
			respond.Error(w, http.StatusUnauthorized, "Sign in to share by email")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			respond.Error(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		if h.Mail == nil {
			respond.Error(w, http.StatusServiceUnavailable, "Email sharing is not configured")
			return
		}
	default:
		respond.Error(w, http.StatusBadRequest, "channel must be whatsapp or email")
		return
	}

	q, err := h.Calc.Calculate(r.Context(), req.Request)
	if err != nil {
		loan.WriteError(w, h.Log, err)
		return
	}
	res := Response{Channel: req.Channel, Summary: Summary(q), Quote: q}

	if req.Channel == ChannelWhatsApp {
		res.Link = WhatsAppLink(req.Phone, res.Summary)
		respond.JSON(w, http.StatusOK, res)
		return
	}

	if err := h.Mail.Send(req.Email, "Your gold loan calculation", res.Summary); err != nil {
		respond.Error(w, http.StatusBadGateway, "Failed to send email")
		return
	}
	res.Sent = true
	h.Log.WithFields(logrus.Fields{"quote": q.ID, "channel": req.Channel}).Info("quote shared")
	respond.JSON(w, http.StatusOK, res)
}
