package http

import (
	"net/http"
	"time"

	"cobros/internal/core"
	"cobros/internal/search"
)

const maxSessionLength = 64

type receiptView struct {
	ID                   string    `json:"id"`
	Label                string    `json:"label"`
	AccountReceiptNumber string    `json:"account_receipt_number"`
	Client               string    `json:"client,omitempty"`
	Service              string    `json:"service,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type searchView struct {
	Query    string        `json:"query"`
	Stale    bool          `json:"stale"`
	Degraded bool          `json:"degraded,omitempty"`
	Receipts []receiptView `json:"receipts"`
}

func newReceiptView(rc core.Receipt) receiptView {
	v := receiptView{
		ID:                   rc.ID,
		Label:                core.DescribeReceipt(&rc),
		AccountReceiptNumber: rc.AccountReceiptNumber,
		CreatedAt:            rc.CreatedAt,
	}
	if rc.Client != nil {
		v.Client = rc.Client.DisplayName()
	}
	if rc.Service != nil {
		v.Service = rc.Service.Name
	}
	return v
}

// handleReceiptSearch answers a typed query. Requests sharing a session go
// through that session's debouncer: a request overtaken by a newer one
// answers stale with no receipts.
func (s *Server) handleReceiptSearch(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q := r.URL.Query().Get("q")
	session := sanitizeInput(r.URL.Query().Get("session"))
	if len(session) > maxSessionLength {
		BadRequestError("session demasiado largo").Write(w)
		return
	}

	var res search.Result
	if session == "" {
		res = s.index.Search(r.Context(), q)
	} else {
		d := s.sessions.GetOrCreate(session, func() *search.Debouncer {
			return search.NewDebouncer(s.index, s.index.Config().Debounce)
		})
		var ok bool
		res, ok = d.Submit(r.Context(), q).Wait(r.Context())
		if !ok {
			NewResponse().JSON(searchView{Query: sanitizeInput(q), Stale: true, Receipts: []receiptView{}}).Write(w)
			return
		}
	}

	out := searchView{
		Query:    res.Query,
		Degraded: res.Err != nil,
		Receipts: make([]receiptView, 0, len(res.Receipts)),
	}
	for _, rc := range res.Receipts {
		out.Receipts = append(out.Receipts, newReceiptView(rc))
	}
	NewResponse().JSON(out).Write(w)
}
