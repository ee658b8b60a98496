package host

import (
	"context"
	"sync"
)

// Recorder - Bridge без Telegram, запоминает вызовы. Используется в тестах и в фоновых задачах.
type Recorder struct {
	mu       sync.Mutex
	alerts   []string
	haptics  []HapticKind
	links    []string
	invoices []string
	back     bool
	ready    bool
	expanded bool

	// InvoiceResult возвращается из OpenInvoice, по умолчанию paid
	InvoiceResult InvoiceStatus
	InvoiceErr    error
	Profile       WebAppUser
	Data          string
}

func (r *Recorder) Ready(ctx context.Context) error {
	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Expand(ctx context.Context) error {
	r.mu.Lock()
	r.expanded = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) ShowAlert(ctx context.Context, text string) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, text)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) OpenInvoice(ctx context.Context, link, payload string) (InvoiceStatus, error) {
	r.mu.Lock()
	r.invoices = append(r.invoices, link)
	res, err := r.InvoiceResult, r.InvoiceErr
	r.mu.Unlock()
	if res == "" {
		res = InvoicePaid
	}
	return res, err
}

func (r *Recorder) Haptic(ctx context.Context, kind HapticKind) {
	r.mu.Lock()
	r.haptics = append(r.haptics, kind)
	r.mu.Unlock()
}

func (r *Recorder) SetBackButton(visible bool) {
	r.mu.Lock()
	r.back = visible
	r.mu.Unlock()
}

func (r *Recorder) BackButtonVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.back
}

func (r *Recorder) OpenLink(ctx context.Context, text, url string) error {
	r.mu.Lock()
	r.links = append(r.links, url)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) InitData() string { return r.Data }

func (r *Recorder) User() WebAppUser { return r.Profile }

func (r *Recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

func (r *Recorder) Haptics() []HapticKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HapticKind(nil), r.haptics...)
}

func (r *Recorder) Invoices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.invoices...)
}

func (r *Recorder) Links() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.links...)
}

func (r *Recorder) Started() (ready, expanded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready, r.expanded
}
