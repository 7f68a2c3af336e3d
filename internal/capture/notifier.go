package capture

import (
	"sync"
	"time"

	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// DefaultNoticeDuration is how long a failure notice stays visible.
const DefaultNoticeDuration = 3 * time.Second

// NoticeKind classifies a capture failure for display.
type NoticeKind string

const (
	NoticeAIUnavailable    NoticeKind = "ai_unavailable"
	NoticeConnectionFailed NoticeKind = "connection_failed"
)

const (
	msgAIUnavailable    = "Chưa cấu hình khóa API cho dịch vụ AI. Nhập liệu bằng giọng nói tạm thời không khả dụng."
	msgConnectionFailed = "Không kết nối được dịch vụ AI. Vui lòng thử lại."
)

// Notice is a short-lived user-facing message.
type Notice struct {
	Kind      NoticeKind    `json:"kind"`
	Message   string        `json:"message"`
	Target    ledger.Target `json:"target"`
	ShownAt   time.Time     `json:"shownAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Notifier holds at most one notice. A newer notice replaces the current
// one, and a notice disappears by itself once its duration has passed.
type Notifier struct {
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current *Notice
}

// NewNotifier creates a Notifier. now may be nil.
func NewNotifier(duration time.Duration, now func() time.Time) *Notifier {
	if duration <= 0 {
		duration = DefaultNoticeDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Notifier{duration: duration, now: now}
}

// Show replaces the current notice with one of kind for t.
func (n *Notifier) Show(kind NoticeKind, t ledger.Target) Notice {
	at := n.now()
	notice := Notice{
		Kind:      kind,
		Message:   noticeMessage(kind),
		Target:    t,
		ShownAt:   at,
		ExpiresAt: at.Add(n.duration),
	}
	n.mu.Lock()
	n.current = &notice
	n.mu.Unlock()
	return notice
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notice{}, false
	}
	return *n.current, true
}

// Dismiss clears the notice early.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	n.current = nil
	n.mu.Unlock()
}

func noticeMessage(kind NoticeKind) string {
	if kind == NoticeAIUnavailable {
		return msgAIUnavailable
	}
	return msgConnectionFailed
}
