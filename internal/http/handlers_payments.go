package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cobros/internal/core"
	"cobros/internal/export"
	"cobros/internal/log"
	"cobros/internal/services"
)

type paymentView struct {
	ID            string    `json:"id"`
	ReceiptID     string    `json:"receipt_id"`
	Receipt       string    `json:"receipt"`
	Client        string    `json:"client"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        int       `json:"status"`
	StatusLabel   string    `json:"status_label"`
	TotalAmount   *string   `json:"total_amount"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
	Date          string    `json:"date"`
	VoucherLink   string    `json:"voucher_link,omitempty"`
}

type summaryView struct {
	Bucket     string     `json:"bucket"`
	Filtered   bool       `json:"filtered"`
	Date       string     `json:"date"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Count      int        `json:"count"`
	Total      string     `json:"total"`
	TotalLabel string     `json:"total_label"`
}

type paymentListView struct {
	summaryView
	Payments []paymentView `json:"payments"`
}

type voucherView struct {
	PaymentID string `json:"payment_id"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
	Link      string `json:"link"`
}

func newPaymentView(p core.Payment, vb core.VoucherBuilder) paymentView {
	v := paymentView{
		ID:          p.ID,
		ReceiptID:   p.ReceiptID,
		Receipt:     p.ReceiptLabel(),
		Client:      core.Placeholder,
		Status:      int(p.Status),
		StatusLabel: core.StatusLabel(p.Status),
		Amount:      core.FormatAmount(p.TotalAmount),
		CreatedAt:   p.CreatedAt,
		Date:        core.FormatDate(p.CreatedAt, vb.Location),
	}
	if c := p.ClientOf(); c != nil && c.DisplayName() != "" {
		v.Client = c.DisplayName()
	}
	if p.PaymentMethod != nil {
		v.PaymentMethod = p.PaymentMethod.Name
	}
	if p.TotalAmount.Valid {
		s := p.TotalAmount.Decimal.StringFixed(2)
		v.TotalAmount = &s
	}
	v.VoucherLink, _ = vb.Link(p)
	return v
}

func newSummaryView(sum core.Summary, params ReportParams) summaryView {
	v := summaryView{
		Bucket:     params.Raw,
		Filtered:   sum.Bucket.Valid(),
		Date:       params.Date.Format(dateLayout),
		Count:      sum.Count,
		Total:      sum.Total.StringFixed(2),
		TotalLabel: core.FormatAmount(sum.Total),
	}
	if v.Filtered {
		start, end := sum.Start, sum.End
		v.Start, v.End = &start, &end
	}
	return v
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleListPayments(w, r)
	case http.MethodPost:
		s.handleCreatePayment(w, r)
	default:
		MethodNotAllowedError("GET, HEAD, POST").Write(w)
	}
}

// report parses the bucket parameters and loads the matching summary,
// writing the error response itself when it fails.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (core.Summary, ReportParams, bool) {
	params, err := ParseReportParams(r.URL.Query(), s.payments.Location(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.Summary{}, ReportParams{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	sum, err := s.payments.Report(ctx, params.Bucket, params.Date)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Payment report failed",
			log.NewFields().WithReport(params.Raw, 0).WithError(err).WithOperation(log.OpReport).ToSlice()...)
		InternalServerError("No se pudieron cargar los pagos.").Write(w)
		return core.Summary{}, ReportParams{}, false
	}
	return sum, params, true
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	sum, params, ok := s.report(w, r)
	if !ok {
		return
	}
	vb := s.payments.Vouchers()
	out := paymentListView{
		summaryView: newSummaryView(sum, params),
		Payments:    make([]paymentView, 0, len(sum.Payments)),
	}
	for _, p := range sum.Payments {
		out.Payments = append(out.Payments, newPaymentView(p, vb))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handlePaymentSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sum, params, ok := s.report(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(newSummaryView(sum, params)).Write(w)
}

func (s *Server) handleVoucher(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	id := sanitizeInput(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("id es requerido").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	v, link, err := s.payments.Voucher(ctx, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Pago no encontrado.").Write(w)
		return
	case errors.Is(err, services.ErrUnaddressable):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Voucher lookup failed", log.FieldPaymentID, id, log.FieldError, err)
		InternalServerError("No se pudo generar el comprobante.").Write(w)
		return
	}
	NewResponse().JSON(voucherView{PaymentID: id, Phone: v.Phone, Text: v.Text, Link: link}).Write(w)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de solicitud inválido.").Write(w)
		return
	}
	status, err := p.GetOptionalInt("status")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	in := services.RegisterInput{
		ReceiptID:       p.Get("receipt_id"),
		PaymentMethodID: p.Get("payment_method_id"),
		TotalAmount:     p.Get("total_amount"),
		Status:          status,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	payment, err := s.payments.RegisterPayment(ctx, in)
	switch {
	case errors.Is(err, core.ErrReceiptRequired), errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case errors.Is(err, core.ErrInvalidStatus):
		UnprocessableEntityError("Estado de pago inválido.").Write(w)
		return
	case errors.Is(err, core.ErrNotFound):
		UnprocessableEntityError("El recibo no existe.").Write(w)
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Payment registration failed",
			log.NewFields().WithPayment("", in.ReceiptID, in.TotalAmount, "").WithError(err).WithOperation(log.OpCreate).ToSlice()...)
		InternalServerError("No se pudo registrar el pago.").Write(w)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/payments/voucher?id="+payment.ID).
		JSON(newPaymentView(payment, s.payments.Vouchers())).
		Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sum, params, ok := s.report(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WritePaymentsReport(&buf, sum, s.payments.Vouchers()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Payment export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
		InternalServerError("No se pudo generar el reporte.").Write(w)
		return
	}

	bucket := string(params.Bucket)
	if !params.Bucket.Valid() {
		bucket = "todos"
	}
	filename := fmt.Sprintf("pagos-%s-%s.xlsx", bucket, params.Date.Format(dateLayout))
	NewResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename)).
		Body(export.ContentType, buf.Bytes()).
		Write(w)
}
