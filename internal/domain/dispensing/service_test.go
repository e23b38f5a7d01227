package dispensing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type mockOrderRepo struct {
	orders map[uuid.UUID]*DispensingOrder
	info   map[uuid.UUID]*PrescriptionInfo
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders: make(map[uuid.UUID]*DispensingOrder),
		info:   make(map[uuid.UUID]*PrescriptionInfo),
	}
}

func (m *mockOrderRepo) Create(ctx context.Context, o *DispensingOrder) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOrderRepo) GetByClientOrderID(ctx context.Context, clientOrderID uuid.UUID) (*DispensingOrder, error) {
	for _, o := range m.orders {
		if o.ClientOrderID == clientOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no rows")
}

func (m *mockOrderRepo) Update(ctx context.Context, o *DispensingOrder) error {
	if _, ok := m.orders[o.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*DispensingOrder, error) {
	var out []*DispensingOrder
	for _, o := range m.orders {
		if o.PrescriptionID == prescriptionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(ctx context.Context, status OrderStatus, limit, offset int) ([]*DispensingOrder, int, error) {
	var out []*DispensingOrder
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) PrescriptionInfo(ctx context.Context, prescriptionID uuid.UUID) (*PrescriptionInfo, error) {
	info, ok := m.info[prescriptionID]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return info, nil
}

type mockPharmacyRepo struct {
	pharmacies map[uuid.UUID]*ExternalPharmacy
}

func newMockPharmacyRepo() *mockPharmacyRepo {
	return &mockPharmacyRepo{pharmacies: make(map[uuid.UUID]*ExternalPharmacy)}
}

func (m *mockPharmacyRepo) Create(ctx context.Context, p *ExternalPharmacy) error {
	p.ID = uuid.New()
	m.pharmacies[p.ID] = p
	return nil
}

func (m *mockPharmacyRepo) GetByID(ctx context.Context, id uuid.UUID) (*ExternalPharmacy, error) {
	p, ok := m.pharmacies[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return p, nil
}

func (m *mockPharmacyRepo) Update(ctx context.Context, p *ExternalPharmacy) error {
	m.pharmacies[p.ID] = p
	return nil
}

func (m *mockPharmacyRepo) List(ctx context.Context, activeOnly bool) ([]*ExternalPharmacy, error) {
	var out []*ExternalPharmacy
	for _, p := range m.pharmacies {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeNumbers struct{ counters map[string]int }

func newFakeNumbers() *fakeNumbers { return &fakeNumbers{counters: make(map[string]int)} }

func (f *fakeNumbers) Next(ctx context.Context, prefix string) (int, error) {
	f.counters[prefix]++
	return f.counters[prefix], nil
}

func (f *fakeNumbers) NextNumber(ctx context.Context, kind string, day time.Time) (string, error) {
	prefix := kind + day.Format("20060102")
	n, _ := f.Next(ctx, prefix)
	return fmt.Sprintf("%s%04d", prefix, n), nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc        *Service
	orders     *mockOrderRepo
	pharmacies *mockPharmacyRepo
}

func newFixture(retries int) *fixture {
	f := &fixture{
		orders:     newMockOrderRepo(),
		pharmacies: newMockPharmacyRepo(),
	}
	client := NewClient(5*time.Second, retries, nil, zerolog.Nop())
	f.svc = NewService(f.orders, f.pharmacies, client, newFakeNumbers(), passthroughTx, nil, zerolog.Nop())
	return f
}

func (f *fixture) seedPharmacy(endpoint string) *ExternalPharmacy {
	p := &ExternalPharmacy{
		Name:          "Herbal Partner",
		Type:          PharmacyDecoction,
		ProcessingFee: 80,
		DeliveryFee:   40,
		APIEndpoint:   endpoint,
		APIKey:        "outbound-key",
		WebhookAPIKey: "inbound-key",
		IsActive:      true,
	}
	_ = f.pharmacies.Create(context.Background(), p)
	return p
}

func (f *fixture) seedOrder(t *testing.T, pharmacy *ExternalPharmacy) *DispensingOrder {
	t.Helper()
	prescriptionID := uuid.New()
	f.orders.info[prescriptionID] = &PrescriptionInfo{
		PrescriptionNumber: "RX202501150001",
		TotalDoses:         6,
		DispensingMethod:   "external_decoction",
		ExternalPharmacyID: &pharmacy.ID,
		MedicineFee:        30,
		Lines: []OrderLine{
			{SKU: "HRB-001", Name: "dried tangerine peel", Dosage: 10, Unit: "g"},
		},
	}
	order, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		PrescriptionID: prescriptionID,
		RecipientName:  "Chan Tai Man",
		RecipientPhone: "91234567",
	}, uuid.New())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateOrderRequiresExternalPrescription(t *testing.T) {
	f := newFixture(0)
	prescriptionID := uuid.New()
	f.orders.info[prescriptionID] = &PrescriptionInfo{TotalDoses: 6}

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		PrescriptionID: prescriptionID,
		RecipientName:  "Chan Tai Man",
		RecipientPhone: "91234567",
	}, uuid.Nil)
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSendMarksOrderSentOn200(t *testing.T) {
	var got OrderPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"accepted":true}`)
	}))
	defer srv.Close()

	f := newFixture(0)
	pharmacy := f.seedPharmacy(srv.URL)
	order := f.seedOrder(t, pharmacy)

	sent, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Status != OrderSent || sent.SentAt == nil {
		t.Errorf("status = %s, sent_at = %v", sent.Status, sent.SentAt)
	}
	if sent.ResponsePayload != `{"accepted":true}` {
		t.Errorf("response payload = %q", sent.ResponsePayload)
	}
	if auth != "Bearer outbound-key" {
		t.Errorf("authorization = %q", auth)
	}
	if got.ClientOrderID != order.ClientOrderID.String() {
		t.Errorf("client_order_id = %q", got.ClientOrderID)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 60 {
		t.Errorf("payload items = %+v, want quantity 60 (10g x 6 doses)", got.Items)
	}
}

func TestSendMarksOrderFailedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pharmacy down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(0)
	pharmacy := f.seedPharmacy(srv.URL)
	order := f.seedOrder(t, pharmacy)

	failed, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send should not surface a server error: %v", err)
	}
	if failed.Status != OrderFailed || failed.ErrorMessage == "" {
		t.Errorf("status = %s, error = %q", failed.Status, failed.ErrorMessage)
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"accepted":true}`)
	}))
	defer srv.Close()

	f := newFixture(2)
	pharmacy := f.seedPharmacy(srv.URL)
	order := f.seedOrder(t, pharmacy)

	sent, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Status != OrderSent {
		t.Errorf("status = %s after retry", sent.Status)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "unknown sku", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	f := newFixture(2)
	pharmacy := f.seedPharmacy(srv.URL)
	order := f.seedOrder(t, pharmacy)

	failed, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if failed.Status != OrderFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (4xx is not retried)", requests)
	}
}

func TestSendRejectedUnlessPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	f := newFixture(0)
	pharmacy := f.seedPharmacy(srv.URL)
	order := f.seedOrder(t, pharmacy)

	if _, err := f.svc.Send(context.Background(), order.ID); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := f.svc.Send(context.Background(), order.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("second send: got %v, want conflict", err)
	}
}

func TestWebhookAdvancesStatus(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	steps := []struct {
		event string
		want  OrderStatus
	}{
		{"order_confirmed", OrderConfirmed},
		{"processing", OrderProcessing},
		{"shipped", OrderShipped},
		{"delivered", OrderCompleted},
	}
	for _, step := range steps {
		got, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
			ClientOrderID:   order.ClientOrderID.String(),
			EventType:       step.event,
			TrackingCompany: "SF Express",
			TrackingNumber:  "SF123456",
		})
		if err != nil {
			t.Fatalf("webhook %s: %v", step.event, err)
		}
		if got.Status != step.want {
			t.Errorf("after %s: status = %s, want %s", step.event, got.Status, step.want)
		}
	}

	final, _ := f.orders.GetByID(context.Background(), order.ID)
	if final.TrackingNumber != "SF123456" || final.TrackingCompany != "SF Express" {
		t.Errorf("tracking not stored: %+v", final)
	}
	if final.CompletedAt == nil {
		t.Error("completed_at not set on delivery")
	}
}

func TestWebhookRejectsWrongKey(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	_, err := f.svc.Webhook(context.Background(), "wrong-key", WebhookRequest{
		ClientOrderID: order.ClientOrderID.String(),
		EventType:     "order_confirmed",
	})
	if !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	got, _ := f.orders.GetByID(context.Background(), order.ID)
	if got.Status != OrderPending {
		t.Errorf("order changed on rejected webhook: %s", got.Status)
	}
}

func TestWebhookUnknownOrderIs404(t *testing.T) {
	f := newFixture(0)

	_, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
		ClientOrderID: uuid.NewString(),
		EventType:     "order_confirmed",
	})
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestWebhookUnknownEventIsNoOp(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	got, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
		ClientOrderID: order.ClientOrderID.String(),
		EventType:     "driver_assigned",
	})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if got.Status != OrderPending {
		t.Errorf("status = %s, want pending untouched", got.Status)
	}
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	if _, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
		ClientOrderID: order.ClientOrderID.String(),
		EventType:     "shipped",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), order.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCancelBeforeShipment(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != OrderCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}
	// A second cancel is a no-op.
	if _, err := f.svc.Cancel(context.Background(), order.ID); err != nil {
		t.Errorf("second cancel: %v", err)
	}
}

func TestCreateOrderSnapshotsFees(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	if order.MedicineFee != 30 || order.ProcessingFee != 80 || order.DeliveryFee != 40 {
		t.Errorf("fees = %v/%v/%v, want 30/80/40",
			order.MedicineFee, order.ProcessingFee, order.DeliveryFee)
	}
	if order.TotalAmount != 150 {
		t.Errorf("total_amount = %v, want sum of fees 150", order.TotalAmount)
	}

	// Later pharmacy rate changes must not rewrite existing orders.
	pharmacy.ProcessingFee = 200
	if err := f.svc.UpdatePharmacy(context.Background(), pharmacy); err != nil {
		t.Fatalf("update pharmacy: %v", err)
	}
	got, _ := f.orders.GetByID(context.Background(), order.ID)
	if got.ProcessingFee != 80 || got.TotalAmount != 150 {
		t.Errorf("order fees changed after rate update: %+v", got)
	}
}

func TestCreatePharmacyValidatesTypeAndFees(t *testing.T) {
	f := newFixture(0)

	_, err := f.svc.CreatePharmacy(context.Background(), &ExternalPharmacy{
		Name:        "Granule Works",
		Type:        "powder",
		APIEndpoint: "http://pharmacy.example",
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("unknown type: got %v", err)
	}

	_, err = f.svc.CreatePharmacy(context.Background(), &ExternalPharmacy{
		Name:        "Granule Works",
		Type:        PharmacyConcentrate,
		DeliveryFee: -5,
		APIEndpoint: "http://pharmacy.example",
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("negative fee: got %v", err)
	}
}

func TestWebhookOutOfOrderEventRegressesStatus(t *testing.T) {
	f := newFixture(0)
	pharmacy := f.seedPharmacy("http://pharmacy.example")
	order := f.seedOrder(t, pharmacy)

	if _, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
		ClientOrderID: order.ClientOrderID.String(),
		EventType:     "delivered",
	}); err != nil {
		t.Fatal(err)
	}

	// A late "shipped" callback after delivery wins: transitions apply
	// whatever the current status, so the order moves back to shipped
	// while completed_at keeps its original value.
	got, err := f.svc.Webhook(context.Background(), "inbound-key", WebhookRequest{
		ClientOrderID:   order.ClientOrderID.String(),
		EventType:       "shipped",
		TrackingCompany: "SF Express",
		TrackingNumber:  "SF123456",
	})
	if err != nil {
		t.Fatalf("late shipped webhook: %v", err)
	}
	if got.Status != OrderShipped {
		t.Errorf("status = %s, want %s", got.Status, OrderShipped)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at lost on status regression")
	}
	if got.TrackingNumber != "SF123456" {
		t.Errorf("tracking = %q", got.TrackingNumber)
	}
}

func TestBreakerIsolatedPerPharmacy(t *testing.T) {
	var downRequests int
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downRequests++
		http.Error(w, "pharmacy down", http.StatusBadGateway)
	}))
	defer down.Close()
	var upRequests int
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upRequests++
		fmt.Fprint(w, `{"accepted":true}`)
	}))
	defer up.Close()

	f := newFixture(0)
	failing := f.seedPharmacy(down.URL)
	healthy := f.seedPharmacy(up.URL)

	// Five consecutive failures trip the failing pharmacy's breaker.
	for i := 0; i < 5; i++ {
		order := f.seedOrder(t, failing)
		if _, err := f.svc.Send(context.Background(), order.ID); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if downRequests != 5 {
		t.Fatalf("requests before trip = %d, want 5", downRequests)
	}

	order := f.seedOrder(t, failing)
	failed, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send with open breaker: %v", err)
	}
	if failed.Status != OrderFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if downRequests != 5 {
		t.Errorf("open breaker let a request through: %d", downRequests)
	}

	// The healthy pharmacy is unaffected.
	sent, err := f.svc.Send(context.Background(), f.seedOrder(t, healthy).ID)
	if err != nil {
		t.Fatalf("send to healthy pharmacy: %v", err)
	}
	if sent.Status != OrderSent || upRequests != 1 {
		t.Errorf("status = %s, requests = %d", sent.Status, upRequests)
	}
}

func TestOpenBreakerIsNotRetried(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "pharmacy down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newFixture(2)
	pharmacy := f.seedPharmacy(srv.URL)

	// Trip the breaker. The first send burns all three attempts; the
	// second send's fifth consecutive failure opens the breaker, which
	// short-circuits its final attempt.
	for i := 0; i < 2; i++ {
		order := f.seedOrder(t, pharmacy)
		if _, err := f.svc.Send(context.Background(), order.ID); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if requests != 5 {
		t.Fatalf("requests = %d, want 5", requests)
	}

	// With the breaker open the send fails immediately instead of
	// sleeping through the backoff schedule.
	start := time.Now()
	order := f.seedOrder(t, pharmacy)
	failed, err := f.svc.Send(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if failed.Status != OrderFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if requests != 5 {
		t.Errorf("open breaker let a request through: %d", requests)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("send with open breaker took %v, should not back off", elapsed)
	}
}
