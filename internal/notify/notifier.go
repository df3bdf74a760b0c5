// Package notify implements the user-visible notice channel. Notices are
// short, transient lines (a toast in the terminal UI); delivering one
// never fails the caller's action.
package notify

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*Toaster)(nil)

// Kind distinguishes normal notices from urgent ones.
type Kind int

const (
	KindInfo Kind = iota
	KindUrgent
)

// ToastFunc shows a notice. display.UI.Toast matches this signature.
type ToastFunc func(kind Kind, message string)

// Toaster forwards notices to a ToastFunc and mirrors them to the log.
type Toaster struct {
	log   *logger.Logger
	toast ToastFunc
}

// NewToaster creates a notifier. If toast is nil, notices are printed to
// stdout, urgent ones in bold red.
func NewToaster(log *logger.Logger, toast ToastFunc) *Toaster {
	if toast == nil {
		toast = printToast
	}
	return &Toaster{log: log, toast: toast}
}

// Notify shows a normal notice.
func (t *Toaster) Notify(ctx context.Context, message string) error {
	t.log.Debug("notify: %s", message)
	t.toast(KindInfo, message)
	return nil
}

// NotifyUrgent shows an error notice.
func (t *Toaster) NotifyUrgent(ctx context.Context, message string) error {
	t.log.Debug("notify-urgent: %s", message)
	t.toast(KindUrgent, message)
	return nil
}

// ANSI escape codes for the stdout fallback.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	cyan  = "\033[36m"
)

func printToast(kind Kind, message string) {
	color := cyan
	if kind == KindUrgent {
		color = red
	}
	fmt.Printf("%s%s%s%s\n", color, bold, message, reset)
}
